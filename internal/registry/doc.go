/*
Package registry is the manual switching engine: it keeps the set of
registered applications and drives their lifecycle transitions through the
engine's parcel configs.

One registration per application name. Each registration owns a transition
mutex, so mount, unmount, and update calls for one application are
serialized even when issued concurrently; distinct applications transition
independently (subject to the engine's singular gate).

The first mount of a registration loads the application and runs its
bootstrap; later mounts reuse the loaded instance. A failed transition
drops the loaded instance, so the next mount starts from a fresh load.

The Seeder pre-populates the registry from microapp.yaml manifests
discovered under a directory tree.
*/
package registry
