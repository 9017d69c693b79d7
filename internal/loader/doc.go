/*
Package loader retrieves application bundles and prepares them for sandbox
evaluation.

The HTTP loader fetches an HTML entry over a retrying client, verifies the
response is HTML, decodes legacy charsets, and splits the document into a
script-free template plus an ordered script list. External scripts are
fetched up front so evaluation never touches the network; external
stylesheets are inlined as style blocks where fetchable. The asset public
path is the entry URL truncated to its directory; relative script and
stylesheet references resolve against it.

Script tags marked with an entry attribute, or the last collected script
when none is marked, are evaluated with a CommonJS module shim so
module.exports can carry the lifecycle exports. Glob patterns over asset
URLs exclude matching scripts and stylesheets from processing entirely;
they stay in the template untouched.

Fetches run through a circuit breaker per remote origin: consecutive
transport failures or 5xx responses open the circuit, later fetches to
that origin fail fast with ErrCircuitOpen until a cool-off passes, and a
single probe then decides whether it closes again. 4xx responses never
open a circuit.

A StaticLoader serves Go-native lifecycles for embedded applications and
tests, bypassing retrieval.
*/
package loader
