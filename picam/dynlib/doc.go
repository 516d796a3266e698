/*Package dynlib loads libpicam at runtime and adapts it to picam.Library.

The module is opened with dlopen, its export table is resolved with
picam.Bind before any call is made, and every entry point is invoked through
a small C trampoline.  It registers itself as the "dlopen" linkage.

The package is only built with cgo and the picamdl build tag:

	go build -tags picamdl ./...

Without the tag the package is empty and the "dlopen" linkage is not
registered, so hosts built without the vendor SDK still compile.
*/
package dynlib
