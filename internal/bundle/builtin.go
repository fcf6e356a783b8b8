package bundle

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// BuiltinVersion names the bundle compiled into the binary.
const BuiltinVersion = "builtin"

//go:embed all:builtin
var builtinFS embed.FS

// Builtin returns the bundle embedded in the binary. It never touches the
// network or the cache.
func Builtin() *Bundle {
	b, err := builtin()
	if err != nil {
		// The embedded tree is fixed at build time; failing to walk it is a
		// packaging bug.
		panic(fmt.Sprintf("reading embedded bundle: %v", err))
	}
	return b
}

func builtin() (*Bundle, error) {
	b := &Bundle{Version: BuiltinVersion, Origin: OriginBuiltin}
	err := fs.WalkDir(builtinFS, "builtin", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := builtinFS.ReadFile(p)
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(p, "builtin/")
		mode := fs.FileMode(0o644)
		if path.Ext(rel) == ".sh" {
			mode = 0o755
		}
		b.Assets = append(b.Assets, Asset{
			RelativePath: rel,
			Content:      data,
			Category:     Categorize(rel),
			Mode:         mode,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(b.Assets, func(i, j int) bool { return b.Assets[i].RelativePath < b.Assets[j].RelativePath })
	return b, nil
}
