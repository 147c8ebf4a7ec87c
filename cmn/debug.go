package cmn

import "github.com/golang/glog"

// Assert panics with a glog-logged message when cond is false.
func Assert(cond bool, msg string) {
	if !cond {
		glog.Errorf("assertion failed: %s", msg)
		panic("assertion failed: " + msg)
	}
}

// AssertNoErr panics on a non-nil error that the caller believes is
// impossible at this point (e.g. marshaling a Metadata value, which has no
// unsupported field types and can never fail).
func AssertNoErr(err error) {
	if err != nil {
		glog.Errorf("unexpected error: %v", err)
		panic(err)
	}
}
