// Package output writes aggregated country blocks to text files.
package output

import (
	"bufio"
	"context"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strings"

	"github.com/Flarenzy/rirblocks/internal/domain"
)

type Format uint8

const (
	// FormatPlain writes IPv4_<CC>.txt / IPv6_<CC>.txt, one CIDR per line.
	FormatPlain Format = iota
	// FormatBindACL writes acl_<cc>_ipv4.conf / acl_<cc>_ipv6.conf BIND acl blocks.
	FormatBindACL
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "plain":
		return FormatPlain, nil
	case "bind-acl", "acl":
		return FormatBindACL, nil
	default:
		return 0, fmt.Errorf("%w: output format %q", domain.ErrInvalidInput, s)
	}
}

func (f Format) String() string {
	if f == FormatBindACL {
		return "bind-acl"
	}
	return "plain"
}

const headerTimeLayout = "2006-01-02 15:04"

type FileWriter struct {
	dir    string
	format Format
}

func NewFileWriter(dir string, format Format) *FileWriter {
	return &FileWriter{dir: dir, format: format}
}

// FileName returns the file the writer uses for one country and family.
func (w *FileWriter) FileName(country string, family domain.Family) string {
	if w.format == FormatBindACL {
		return fmt.Sprintf("acl_%s_%s.conf", strings.ToLower(country), family)
	}
	if family == domain.FamilyIPv6 {
		return fmt.Sprintf("IPv6_%s.txt", country)
	}
	return fmt.Sprintf("IPv4_%s.txt", country)
}

func (w *FileWriter) WriteCountry(ctx context.Context, blocks domain.CountryBlocks) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	for _, family := range []domain.Family{domain.FamilyIPv4, domain.FamilyIPv6} {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(w.dir, w.FileName(blocks.Country, family))
		if err := writeAtomic(path, func(bw *bufio.Writer) error {
			return w.render(bw, blocks, family)
		}); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return nil
}

func (w *FileWriter) render(bw *bufio.Writer, blocks domain.CountryBlocks, family domain.Family) error {
	prefixes := blocks.Blocks(family)
	if w.format == FormatBindACL {
		return renderBindACL(bw, blocks.Country, family, prefixes)
	}
	fmt.Fprintf(bw, "# generated %s (%s %s)\n", blocks.GeneratedAt.Local().Format(headerTimeLayout), blocks.Country, family)
	for _, p := range prefixes {
		bw.WriteString(p.String())
		bw.WriteByte('\n')
	}
	return nil
}

func renderBindACL(bw *bufio.Writer, country string, family domain.Family, prefixes []netip.Prefix) error {
	fmt.Fprintf(bw, "acl \"%s_%s\" {\n", country, family)
	for _, p := range prefixes {
		fmt.Fprintf(bw, "  %s;\n", p)
	}
	_, err := bw.WriteString("};\n")
	return err
}

// writeAtomic writes to a temp file next to path and renames it into place.
func writeAtomic(path string, fill func(*bufio.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = fill(bw); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	if err = tmp.Chmod(0o644); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
