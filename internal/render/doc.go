// Package render places application wrapper elements into their target
// containers.
//
// A Dispatcher is created per application load. Each lifecycle transition
// dispatches one render with a phase tag; the dispatcher resolves the
// target container fresh on every call so containers may be replaced
// between mounts. A missing container is fatal in every phase except
// unmounted, where teardown proceeds regardless.
//
// When the application registered a legacy render function the dispatcher
// delegates every call to it and performs no container management at all.
package render
