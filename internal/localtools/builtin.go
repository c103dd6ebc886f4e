// Package localtools binds the project's local developer tools to the host
// tool runtime.
package localtools

import (
	"strings"

	"github.com/stellarlinkco/buildplus/internal/tooling"
)

// DocFXSourceBranch overrides the branch docfx links source files against.
const DocFXSourceBranch = "DOCFX_SOURCE_BRANCH_NAME"

const (
	DocFXName           = "docfx"
	DocFXServeName      = "docfx-serve"
	ReportGeneratorName = "reportgenerator"
)

// Builtins are the tools every build root gets without a preset file.
type Builtins struct {
	DocFXBuild      tooling.Tool
	DocFXServe      tooling.Tool
	ReportGenerator tooling.Tool
}

func NewBuiltins(rt tooling.Runtime) Builtins {
	return Builtins{
		DocFXBuild:      rt.Bind("docfx", nil, nil),
		DocFXServe:      rt.Bind("docfx", []string{"--serve", "--open-browser"}, nil),
		ReportGenerator: rt.Bind("reportgenerator", nil, nil),
	}
}

// WithSourceBranch sets the branch docfx uses for source links.
func WithSourceBranch(branch string) tooling.Configure {
	return func(o *tooling.Options) {
		o.SetEnvironmentVariable(DocFXSourceBranch, branch)
	}
}

// ReportGeneratorArgs appends the reportgenerator report selection. Multiple
// report types are joined with ';'.
func ReportGeneratorArgs(reports, targetDir string, reportTypes ...string) tooling.Configure {
	return func(o *tooling.Options) {
		o.AddArguments("-reports:"+reports, "-targetdir:"+targetDir)
		if len(reportTypes) > 0 {
			o.AddArguments("-reporttypes:" + strings.Join(reportTypes, ";"))
		}
	}
}
