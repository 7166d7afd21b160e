// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package slurm

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// DirectivesTemplate is the Go template for the #SBATCH header of a
// submission script. Optional fields only produce a line when set.
const DirectivesTemplate = `#SBATCH --time={{.Time}}
#SBATCH --mem={{.Memory}}
#SBATCH --cpus-per-task={{.CPUs}}
#SBATCH --nodes={{.Nodes}}
#SBATCH --error={{.LogErr}}
#SBATCH --output={{.LogOut}}
{{- if .JobName }}
#SBATCH --job-name={{.JobName}}
{{- end }}
{{- if .MailUser }}
#SBATCH --mail-user={{.MailUser}}
{{- end }}
{{- if .MailType }}
#SBATCH --mail-type={{.MailType}}
{{- end }}
{{- if .Constraint }}
#SBATCH --constraint={{.Constraint}}
{{- end }}
{{- if .Exclude }}
#SBATCH --exclude={{.Exclude}}
{{- end }}
{{- if .NodeList }}
#SBATCH --nodelist={{.NodeList}}
{{- end }}
`

var directivesTmpl = template.Must(template.New("sbatchDirectives").Parse(DirectivesTemplate))

// Directives renders the #SBATCH header lines for spec.
func Directives(spec ResourceSpec) (string, error) {
	var buf bytes.Buffer
	if err := directivesTmpl.Execute(&buf, spec); err != nil {
		return "", fmt.Errorf("failed to execute sbatch directives template: %w", err)
	}
	return buf.String(), nil
}

// RenderScript places the directives of spec after the interpreter line of
// spec.Script, or at the top when the script has none.
func RenderScript(spec ResourceSpec) (string, error) {
	header, err := Directives(spec)
	if err != nil {
		return "", err
	}
	script := spec.Script
	if !strings.HasPrefix(script, "#!") {
		return header + script, nil
	}
	shebang, body, found := strings.Cut(script, "\n")
	if !found {
		return shebang + "\n" + header, nil
	}
	return shebang + "\n" + header + body, nil
}
