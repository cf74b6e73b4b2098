/*
	(c) Copyright NetFoundry Inc. Inc.

	Licensed under the Apache License, Version 2.0 (the "License");
	you may not use this file except in compliance with the License.
	You may obtain a copy of the License at

	https://www.apache.org/licenses/LICENSE-2.0

	Unless required by applicable law or agreed to in writing, software
	distributed under the License is distributed on an "AS IS" BASIS,
	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
	See the License for the specific language governing permissions and
	limitations under the License.
*/

package subcmd

import (
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/model"
)

func renderImageLists(out io.Writer, ids []string) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Image List"})
	for _, id := range ids {
		t.AppendRow(table.Row{id})
	}
	t.Render()
}

func renderAppliances(out io.Writer, appliances []*model.Appliance) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Identifier", "Title", "Version", "Image List", "Expires", "Format", "Size"})
	for _, a := range appliances {
		format, size := "-", "-"
		if a.Image != nil {
			format = string(a.Image.Format)
			size = humanize.Bytes(uint64(a.Image.Size))
		}
		expires := time.Unix(a.ExpirationDate, 0).UTC().Format(time.RFC3339)
		t.AppendRow(table.Row{a.Identifier, a.Title, a.Version, a.ImageListIdentifier, expires, format, size})
	}
	t.Render()
}
