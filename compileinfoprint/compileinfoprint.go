// compileinfoprint is imported by binaries for the side effect of printing
// their build provenance to os.Stderr at startup.
package compileinfoprint

import "github.com/carbocation/segeval/compileinfo"

func init() {
	compileinfo.PrintToStdErr()
}
