// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"fmt"

	"github.com/pdiddy/office2pdf/internal/engine"
	"github.com/pdiddy/office2pdf/pkg/types"
)

// autoOrder is the engine order used by method "auto", keyed by extension
// for Word and by kind otherwise. docx2pdf is fastest for .docx but cannot
// open legacy .doc files reliably, so it moves behind the office suites there.
var autoOrder = map[string][]types.EngineMethod{
	".docx": {types.MethodDocx2PDF, types.MethodMSOffice, types.MethodLibreOffice, types.MethodContainer, types.MethodGotenberg},
	".doc":  {types.MethodMSOffice, types.MethodLibreOffice, types.MethodDocx2PDF, types.MethodContainer, types.MethodGotenberg},

	string(types.KindExcel): {types.MethodMSOffice, types.MethodLibreOffice, types.MethodContainer, types.MethodGotenberg},
	string(types.KindImage): {types.MethodImage},
}

// Methods lists every engine name accepted in configuration.
func Methods() []types.EngineMethod {
	return []types.EngineMethod{
		types.MethodAuto, types.MethodMSOffice, types.MethodDocx2PDF,
		types.MethodLibreOffice, types.MethodContainer, types.MethodGotenberg, types.MethodImage,
	}
}

// ValidMethod reports an error unless m names an engine or "auto".
func ValidMethod(m types.EngineMethod) error {
	for _, known := range Methods() {
		if m == known {
			return nil
		}
	}
	return fmt.Errorf("unknown conversion method %q", m)
}

func autoPlan(doc types.Document) []types.EngineMethod {
	if doc.Kind == types.KindWord {
		if order, ok := autoOrder[doc.Ext]; ok {
			return order
		}
		return autoOrder[".docx"]
	}
	return autoOrder[string(doc.Kind)]
}

// Plan returns the engines to try for doc, in order. An explicit method is
// followed by the backup method; engines that cannot render the document's
// kind are dropped. When that leaves nothing (an image with method
// "libreoffice", say) the automatic order for the kind is used instead.
func (c *Converter) Plan(doc types.Document) []engine.Engine {
	var names []types.EngineMethod
	if c.cfg.Method == "" || c.cfg.Method == types.MethodAuto {
		names = autoPlan(doc)
	} else {
		names = []types.EngineMethod{c.cfg.Method}
		if b := c.cfg.BackupMethod; b != "" && b != types.MethodAuto && b != c.cfg.Method {
			names = append(names, b)
		}
	}

	plan := c.resolve(names, doc.Kind)
	if len(plan) == 0 {
		plan = c.resolve(autoPlan(doc), doc.Kind)
	}
	return plan
}

func (c *Converter) resolve(names []types.EngineMethod, kind types.DocumentKind) []engine.Engine {
	var plan []engine.Engine
	for _, n := range names {
		e, ok := c.engines.Get(string(n))
		if !ok || !e.Supports(kind) {
			continue
		}
		plan = append(plan, e)
	}
	return plan
}
