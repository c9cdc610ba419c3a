// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/pdiddy/office2pdf/internal/formats"
	"github.com/pdiddy/office2pdf/pkg/types"
)

// Office export constants: wdExportFormatPDF and xlTypePDF.
const (
	wdExportFormatPDF = 17
	xlTypePDF         = 0
)

const wordScript = `$ErrorActionPreference = 'Stop'
$app = New-Object -ComObject Word.Application
$app.Visible = $false
$app.DisplayAlerts = 0
try {
  $doc = $app.Documents.Open(%s, $false, $true)
  try { $doc.ExportAsFixedFormat(%s, %d) } finally { $doc.Close(0) }
} finally { $app.Quit() }`

const excelScript = `$ErrorActionPreference = 'Stop'
$app = New-Object -ComObject Excel.Application
$app.Visible = $false
$app.DisplayAlerts = $false
try {
  $wb = $app.Workbooks.Open(%s, 0, $true)
  try { %s.ExportAsFixedFormat(%d, %s) } finally { $wb.Close($false) }
} finally { $app.Quit() }`

const availabilityScript = `if (-not ([type]::GetTypeFromProgID('Word.Application') -or [type]::GetTypeFromProgID('Excel.Application'))) { exit 1 }`

// MSOffice drives an installed Microsoft Word or Excel through COM
// automation from PowerShell. Windows only.
type MSOffice struct {
	powershell string
	exec       Executor
	goos       string

	// Office automation runs one application instance at a time.
	mu sync.Mutex
}

// NewMSOffice returns an engine that runs the given PowerShell binary.
func NewMSOffice(powershell string, exec Executor) *MSOffice {
	if powershell == "" {
		powershell = "powershell"
	}
	return &MSOffice{powershell: powershell, exec: exec, goos: runtime.GOOS}
}

func (m *MSOffice) Name() string { return string(types.MethodMSOffice) }

func (m *MSOffice) Supports(kind types.DocumentKind) bool {
	return kind == types.KindWord || kind == types.KindExcel
}

func (m *MSOffice) Available(ctx context.Context) bool {
	if m.goos != "windows" {
		return false
	}
	if _, err := m.exec.LookPath(m.powershell); err != nil {
		return false
	}
	_, err := m.exec.Run(ctx, m.powershell, psArgs(availabilityScript)...)
	return err == nil
}

func (m *MSOffice) Convert(ctx context.Context, src, dst string) error {
	return m.ConvertSheet(ctx, src, dst, "")
}

// ConvertSheet exports only the named or numbered worksheet of an Excel
// workbook. An empty sheet exports the whole workbook.
func (m *MSOffice) ConvertSheet(ctx context.Context, src, dst, sheet string) error {
	if m.goos != "windows" {
		return fmt.Errorf("%s: %w: requires Windows", m.Name(), ErrUnavailable)
	}

	script, err := officeScript(src, dst, sheet)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out, err := m.exec.Run(ctx, m.powershell, psArgs(script)...)
	if err != nil {
		return toolError(m.Name(), out, err)
	}
	return requireOutput(m.Name(), dst, out)
}

// officeScript picks the Word or Excel export script for src.
func officeScript(src, dst, sheet string) (string, error) {
	switch formats.Detect(src) {
	case types.KindWord:
		if sheet != "" {
			return "", fmt.Errorf("msoffice: %s is not a workbook, cannot select sheet %q", src, sheet)
		}
		return fmt.Sprintf(wordScript, psQuote(src), psQuote(dst), wdExportFormatPDF), nil
	case types.KindExcel:
		target, err := sheetTarget(sheet)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(excelScript, psQuote(src), target, xlTypePDF, psQuote(dst)), nil
	default:
		return "", fmt.Errorf("msoffice: cannot export %s", src)
	}
}

// sheetTarget returns the PowerShell expression to export: the workbook,
// or one worksheet by 1-based index or by name.
func sheetTarget(sheet string) (string, error) {
	if sheet == "" {
		return "$wb", nil
	}
	if n, err := strconv.Atoi(sheet); err == nil {
		if n < 1 {
			return "", fmt.Errorf("msoffice: sheet index %d must be 1 or greater", n)
		}
		return fmt.Sprintf("$wb.Sheets(%d)", n), nil
	}
	return "$wb.Sheets(" + psQuote(sheet) + ")", nil
}

func psArgs(script string) []string {
	return []string{"-NoProfile", "-NonInteractive", "-ExecutionPolicy", "Bypass", "-Command", script}
}

// psQuote returns s as a single-quoted PowerShell literal.
func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
