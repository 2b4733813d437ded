package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectRows(t *testing.T, rowCh <-chan []string, errCh <-chan error) ([][]string, error) {
	t.Helper()
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	for err := range errCh {
		if err != nil {
			return rows, err
		}
	}
	return rows, nil
}

func TestStreamCSV_Basic(t *testing.T) {
	input := "a,b,c\n1,2,3\n4,5,6\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"a", "b", "c"}, rows[0])
	assert.Equal(t, []string{"4", "5", "6"}, rows[2])
}

func TestStreamCSV_TrimSpace(t *testing.T) {
	input := "a , b\n 1,2 \n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{TrimSpace: true})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, rows[0])
	assert.Equal(t, []string{"1", "2"}, rows[1])
}

func TestStreamCSV_Latin1(t *testing.T) {
	// "Waitematā" is not representable in latin1; the police extract uses
	// plain accented latin1 bytes like 0xE9 ("é").
	input := "name\ncaf\xe9\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{Charset: "latin1"})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "café", rows[1][0])
}

func TestStreamCSV_UnknownCharset(t *testing.T) {
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader("a\n"), CSVOptions{Charset: "not-a-charset"})
	_, err := collectRows(t, rowCh, errCh)
	assert.Error(t, err)
}

func TestStreamCSV_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rowCh, errCh := StreamCSV(ctx, strings.NewReader("a,b\n1,2\n3,4\n"), CSVOptions{})
	_, err := collectRows(t, rowCh, errCh)
	assert.Error(t, err)
}

func TestStreamCSV_RaggedRows(t *testing.T) {
	// The extract occasionally has short rows; lazy quotes plus variable
	// field counts must not abort the stream.
	input := "a,b,c\n1,2\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{LazyQuotes: true})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
