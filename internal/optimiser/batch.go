package optimiser

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sonnetlabs/sonnetsuiteshelper/internal/sonfile"
)

// OutputExtension is the spreadsheet extension the solver is asked to emit.
const OutputExtension = ".csv"

// FileManager derives batch file names from the optimiser name and writes
// the generated .son files into the project batches directory.
type FileManager struct {
	// BaseFile is the path to the template .son project.
	BaseFile string
	// BatchesDir receives the generated project files.
	BatchesDir string
	// OutputsDir is where the solver is told to write spreadsheets.
	OutputsDir string
	// Name is the optimiser name embedded in every batch file.
	Name string
}

// BatchStem builds the file stem for batch n, for example
// "batch_3__resonator-f0_length_250.5".
func (fm *FileManager) BatchStem(n int, param string, value float64) string {
	return fmt.Sprintf("batch_%d__%s_%s_%s", n, fm.Name, param, strconv.FormatFloat(value, 'g', -1, 64))
}

// Generate writes the .son file for batch n with the parameter set to value
// and returns its path. Regenerating an existing batch file overwrites it so
// interrupted runs can be resumed.
func (fm *FileManager) Generate(n int, param string, value float64) (string, error) {
	return sonfile.Generate(sonfile.GenerateRequest{
		BaseFile:   filepath.Base(fm.BaseFile),
		BaseDir:    filepath.Dir(fm.BaseFile),
		OutputFile: fm.BatchStem(n, param, value),
		OutputDir:  fm.BatchesDir,
		Edits: sonfile.Edits{
			Params: map[string]float64{param: value},
		},
		Overwrite: true,
	})
}

// OutputPath maps a generated .son file to its spreadsheet location.
func (fm *FileManager) OutputPath(sonPath string) string {
	stem := strings.TrimSuffix(filepath.Base(sonPath), sonfile.Extension)
	return filepath.Join(fm.OutputsDir, stem+OutputExtension)
}
