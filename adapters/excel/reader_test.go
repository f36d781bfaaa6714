package excel

import (
	"os"
	"path/filepath"
	"testing"

	"gocp/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCSVWithCategoricalTarget(t *testing.T) {
	path := writeCSV(t, "x1,x2,species\n1.0,2.0,setosa\n3, 4 ,virginica\n5,n/a,setosa\n,,\n6,7,versicolor\n")

	frame, err := Load(path, "species")
	require.NoError(t, err)
	assert.Equal(t, []string{"x1", "x2"}, frame.Features)
	assert.Equal(t, "species", frame.Target)
	assert.Equal(t, []string{"setosa", "versicolor", "virginica"}, frame.Classes)
	assert.Equal(t, 1, frame.Skipped, "the n/a row is dropped, the blank row is ignored")
	assert.Equal(t, []float64{0, 2, 1}, frame.Data.Y)
	assert.Equal(t, []float64{3, 4}, frame.Data.Row(1))
}

func TestLoadCSVNumericTargetDefaultsToLastColumn(t *testing.T) {
	path := writeCSV(t, "y,a,b\n0.5,1,-1\n1.5,2,-2\n")

	frame, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "b", frame.Target)
	assert.Nil(t, frame.Classes)
	assert.Equal(t, []float64{-1, -2}, frame.Data.Y)

	frame, err = Load(path, "Y")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1.5}, frame.Data.Y)
	assert.Equal(t, []string{"a", "b"}, frame.Features)
}

func TestLoadExcel(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", "measurements"))
	require.NoError(t, f.SetSheetRow("measurements", "A1", &[]interface{}{"width", "height", "label"}))
	require.NoError(t, f.SetSheetRow("measurements", "A2", &[]interface{}{1.5, 2, 1}))
	require.NoError(t, f.SetSheetRow("measurements", "A3", &[]interface{}{0.5, 3, -1}))
	path := filepath.Join(t.TempDir(), "data.xlsx")
	require.NoError(t, f.SaveAs(path))

	frame, err := Load(path, "label")
	require.NoError(t, err)
	assert.Equal(t, 2, frame.Data.Rows())
	assert.Equal(t, []float64{1, -1}, frame.Data.Y)
	assert.Equal(t, []float64{1.5, 2}, frame.Data.Row(0))

	_, err = NewDataReader(path, WithSheet("missing")).ReadData()
	assert.Error(t, err)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.csv"), "")
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	_, err = Load(writeCSV(t, "a,b\n"), "")
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	_, err = Load(writeCSV(t, "a,b\n1,2\n"), "c")
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	_, err = Load(writeCSV(t, "a,b\nx,1\n"), "b")
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}
