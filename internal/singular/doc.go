// Package singular serializes mount cycles for applications that must not
// coexist.
//
// A Sequencer hands out one Token per exclusive mount. The next exclusive
// mount waits until the previous token is released, which happens when the
// owning application finishes unmounting. Tokens carry ownership: releasing
// a superseded token wakes its waiters but never disturbs the token
// currently installed.
package singular
