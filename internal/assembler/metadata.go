package assembler

import (
	"bytes"
	"context"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/my3495/scriptpack/internal/domain/bundle"
	"github.com/my3495/scriptpack/internal/logger"
)

// Icons are accepted in the two formats launchers can display.
var (
	icoMagic = []byte{0x00, 0x00, 0x01, 0x00}
	pngMagic = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
)

// VersionInfo is the version descriptor embedded into the executable.
type VersionInfo struct {
	// ProductName is the display name of the application.
	ProductName string `yaml:"product_name"`
	// FileVersion is the four-part file version string.
	FileVersion string `yaml:"file_version"`
	// ProductVersion is the marketing version string.
	ProductVersion string `yaml:"product_version"`
	// CompanyName names the publisher.
	CompanyName string `yaml:"company_name"`
	// Description is the one-line file description.
	Description string `yaml:"file_description"`
	// Copyright is the legal copyright line.
	Copyright string `yaml:"copyright"`
}

// loadIcon reads and checks an icon file. Any problem degrades to a
// warning and the icon is left out of the executable.
func loadIcon(ctx context.Context, path string, report *bundle.Report) []byte {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		report.Addf(bundle.WarnIconInvalid, "icon %q cannot be read: %v", path, err)

		return nil
	}

	if !bytes.HasPrefix(data, icoMagic) && !bytes.HasPrefix(data, pngMagic) {
		report.Addf(bundle.WarnIconInvalid, "icon %q is neither ICO nor PNG", path)

		return nil
	}

	logger.DebugKV(ctx, "icon accepted", "path", path, "bytes", len(data))

	return data
}

// loadVersionInfo reads and checks the version descriptor. Any problem
// degrades to a warning and the block is left out of the executable.
func loadVersionInfo(ctx context.Context, path string, report *bundle.Report) []byte {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		report.Addf(bundle.WarnVersionInfoInvalid, "version info %q cannot be read: %v", path, err)

		return nil
	}

	var info VersionInfo

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&info); err != nil {
		report.Addf(bundle.WarnVersionInfoInvalid, "version info %q is not a valid descriptor: %v", path, err)

		return nil
	}

	if info == (VersionInfo{}) {
		report.Addf(bundle.WarnVersionInfoInvalid, "version info %q sets no fields", path)

		return nil
	}

	logger.DebugKV(ctx, "version info accepted", "path", path, "product", info.ProductName)

	return data
}
