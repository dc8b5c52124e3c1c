package cmds

import (
	"fmt"
	"os"
	"strings"

	goparquet "github.com/fraugster/parquet-go"
	"github.com/spf13/pflag"
)

func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", name, err))
		}
	}
}

func joinValues(l []string) string {
	return strings.Join(l, ", ")
}

// openParquet opens a file for the inspection commands. The caller closes
// the returned file.
func openParquet(address string) (*os.File, *goparquet.FileReader, error) {
	fl, err := os.Open(address)
	if err != nil {
		return nil, nil, fmt.Errorf("can not open the file: %w", err)
	}

	reader, err := goparquet.NewFileReader(fl)
	if err != nil {
		_ = fl.Close()
		return nil, nil, fmt.Errorf("failed to read the parquet header: %w", err)
	}
	return fl, reader, nil
}
