// sim/metrics_utils.go
package sim

import (
	"bufio"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Bin is one bucket of a histogram: an integer key and its count.
type Bin struct {
	Key   int
	Count int
}

type IntOrFloat64 interface {
	int | int64 | float64
}

// JoinValues formats values separated by single spaces.
func JoinValues[T IntOrFloat64](values []T) string {
	var sb []byte
	for i, v := range values {
		if i > 0 {
			sb = append(sb, ' ')
		}
		sb = fmt.Append(sb, v)
	}
	return string(sb)
}

// SaveLines writes one value per line to fileName, creating or truncating it.
func SaveLines[T IntOrFloat64](values []T, fileName string) error {
	file, err := os.OpenFile(fileName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", fileName, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			logrus.Errorf("Error closing file %s: %v", fileName, closeErr)
		}
	}()

	writer := bufio.NewWriter(file)
	for _, v := range values {
		if _, err := fmt.Fprintln(writer, v); err != nil {
			return fmt.Errorf("writing %s: %w", fileName, err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flushing %s: %w", fileName, err)
	}

	logrus.Debugf("Successfully wrote to '%s'", fileName)
	return nil
}
