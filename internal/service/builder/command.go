package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/my3495/scriptpack/internal/analyzer"
	"github.com/my3495/scriptpack/internal/archive"
	"github.com/my3495/scriptpack/internal/assembler"
	"github.com/my3495/scriptpack/internal/collector"
	"github.com/my3495/scriptpack/internal/config"
	"github.com/my3495/scriptpack/internal/domain/bundle"
	"github.com/my3495/scriptpack/internal/logger"
	"github.com/my3495/scriptpack/internal/repository/receipt"
)

const (
	// archiveFilename is the packed module archive inside the work tree.
	archiveFilename = "modules.spkz"
	// warningsFilename collects build warnings inside the work tree.
	warningsFilename = "warnings.txt"
	// receiptFilename is the build receipt inside the work tree.
	receiptFilename = "receipt.yaml"

	workTreeMode os.FileMode = 0o755
)

// Options contains inputs for the build entry point.
type Options struct {
	// ConfigPath is the build manifest location, scriptpack.yaml by default.
	ConfigPath string
	// DistPath overrides the configured distribution directory when set.
	DistPath string
	// WorkPath overrides the configured work directory when set.
	WorkPath string
	// StubDir overrides the configured stub directory when set.
	StubDir string
	// Target overrides the configured "<os>/<arch>" pair when set.
	Target string
	// OneFile forces or suppresses single-file output when set.
	OneFile *bool
	// Windowed forces or suppresses the windowed launcher when set.
	Windowed *bool
	// Clean wipes the application's work tree before building.
	Clean bool
}

// builder carries the state threaded through the pipeline stages.
// It is unexported; callers should use Run, which encapsulates setup.
type builder struct {
	cfg    *config.Config
	meta   bundle.Metadata
	report *bundle.Report

	// buildID names this run in the receipt.
	buildID string
	// workDir is the application's private work tree.
	workDir string

	analysis       *analyzer.Result
	plan           []bundle.PlacedFile
	archivePath    string
	executablePath string
	collected      *collector.Result
}

// Run executes the full bundling workflow.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "scriptpack-builder")

	b, err := newBuilder(opts)
	if err != nil {
		return fmt.Errorf("initialize build: %w", err)
	}

	if err = b.run(ctx, opts.Clean); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	logger.InfoKV(ctx, "Build completed successfully",
		"output", b.collected.OutputPath,
		"warnings", b.report.Len())

	return nil
}

func newBuilder(opts *Options) (*builder, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, bundle.AsConfiguration(err)
	}

	applyOverrides(cfg, opts)

	if err = config.Validate(cfg); err != nil {
		return nil, bundle.AsConfiguration(err)
	}

	return &builder{
		cfg:     cfg,
		meta:    cfg.Metadata(),
		report:  bundle.NewReport(),
		buildID: uuid.NewString(),
		workDir: filepath.Join(cfg.WorkPath, cfg.AppName),
	}, nil
}

// applyOverrides lets the command line win over the manifest.
func applyOverrides(cfg *config.Config, opts *Options) {
	if opts.DistPath != "" {
		cfg.DistPath = opts.DistPath
	}

	if opts.WorkPath != "" {
		cfg.WorkPath = opts.WorkPath
	}

	if opts.StubDir != "" {
		cfg.StubDir = opts.StubDir
	}

	if opts.Target != "" {
		cfg.Target = opts.Target
	}

	if opts.OneFile != nil {
		cfg.OneFile = *opts.OneFile
	}

	if opts.Windowed != nil {
		cfg.Windowed = *opts.Windowed
	}
}

func (b *builder) run(ctx context.Context, clean bool) error {
	logger.InfoKV(ctx, "Starting build",
		"app", b.cfg.AppName,
		"build_id", b.buildID,
		"target", b.meta.Target(),
		"one_file", b.meta.OneFile)

	if err := b.prepareWorkTree(ctx, clean); err != nil {
		return err
	}

	if err := b.analyze(ctx); err != nil {
		return err
	}

	if err := b.pack(ctx); err != nil {
		return err
	}

	if err := b.planPlacements(ctx); err != nil {
		return err
	}

	if err := b.assemble(ctx); err != nil {
		return err
	}

	if err := b.collect(ctx); err != nil {
		return err
	}

	if err := b.writeArtifacts(ctx); err != nil {
		return err
	}

	b.logWarnings(ctx)

	return nil
}

func (b *builder) prepareWorkTree(ctx context.Context, clean bool) error {
	b.logPreviousBuild(ctx)

	if clean {
		logger.InfoKV(ctx, "Cleaning work tree", "path", b.workDir)

		if err := os.RemoveAll(b.workDir); err != nil {
			return bundle.AsAssembly(err)
		}
	}

	if err := os.MkdirAll(b.workDir, workTreeMode); err != nil {
		return bundle.AsAssembly(err)
	}

	return nil
}

// logPreviousBuild surfaces the receipt left by an earlier run of the
// same application. A missing or unreadable receipt is not an error.
func (b *builder) logPreviousBuild(ctx context.Context) {
	repo := receipt.NewFileRepository(filepath.Join(b.workDir, receiptFilename))

	previous, err := repo.Load(ctx)
	if err != nil {
		if !errors.Is(err, receipt.ErrNotFound) {
			logger.Debugf(ctx, "Previous receipt unreadable: %v", err)
		}

		return
	}

	logger.InfoKV(ctx, "Previous build found",
		"build_id", previous.BuildID,
		"built_at", previous.BuiltAt,
		"bundler_version", previous.BundlerVersion)
}

func (b *builder) analyze(ctx context.Context) error {
	logger.Info(ctx, "Analyzing dependencies")

	analysis, err := analyzer.Analyze(ctx, &analyzer.Options{
		EntryPoint:    b.cfg.EntryPoint,
		SearchPaths:   b.cfg.SearchPaths,
		HiddenImports: b.cfg.HiddenImports,
		Excludes:      b.cfg.Excludes,
	}, b.report)
	if err != nil {
		return err
	}

	b.analysis = analysis

	return nil
}

// pack reads every archived module's payload and writes the module archive
// into the work tree.
func (b *builder) pack(ctx context.Context) error {
	logger.Info(ctx, "Packing module archive")

	entries := make([]archive.Entry, 0, len(b.analysis.Modules))

	for _, record := range b.analysis.Modules {
		if !record.Archived() {
			continue
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		payload, err := os.ReadFile(record.OriginPath)
		if err != nil {
			return bundle.AsAssembly(fmt.Errorf("read module %q: %w", record.QualifiedName, err))
		}

		entries = append(entries, archive.Entry{
			Name:     record.QualifiedName,
			Payload:  payload,
			Package:  record.IsPackage,
			Compiled: record.Compiled(),
		})
	}

	b.archivePath = filepath.Join(b.workDir, archiveFilename)

	out, err := os.Create(b.archivePath)
	if err != nil {
		return bundle.AsAssembly(err)
	}

	if err = archive.Write(out, entries, b.cfg.CompressModules); err != nil {
		_ = out.Close()

		return err
	}

	if err = out.Close(); err != nil {
		return bundle.AsAssembly(err)
	}

	logger.InfoKV(ctx, "Packed module archive", "modules", len(entries), "path", b.archivePath)

	return nil
}

func (b *builder) planPlacements(ctx context.Context) error {
	resources, err := b.cfg.ResourceEntries()
	if err != nil {
		return bundle.AsConfiguration(err)
	}

	b.plan, err = collector.Plan(ctx, b.analysis.Modules, resources, b.report)

	return err
}

func (b *builder) assemble(ctx context.Context) error {
	logger.Info(ctx, "Assembling executable")

	spec, err := b.launchSpec()
	if err != nil {
		return err
	}

	b.executablePath = filepath.Join(b.workDir, b.meta.OutputName())

	opts := &assembler.Options{
		StubDir:     b.cfg.StubDir,
		Metadata:    b.meta,
		LaunchSpec:  spec,
		ArchivePath: b.archivePath,
		OutputPath:  b.executablePath,
		Compress:    b.cfg.CompressModules,
	}

	if b.meta.OneFile {
		opts.Embed = b.plan
	}

	return assembler.Assemble(ctx, opts, b.report)
}

func (b *builder) launchSpec() (bundle.LaunchSpec, error) {
	entry, err := b.entryRecord()
	if err != nil {
		return bundle.LaunchSpec{}, err
	}

	return bundle.LaunchSpec{
		EntryModule:     b.analysis.EntryModule,
		EntryFile:       bundle.SourceRelPath(entry.QualifiedName, entry.IsPackage, entry.Compiled()),
		Interpreter:     b.cfg.Runtime.Interpreter,
		InterpreterArgs: b.cfg.Runtime.InterpreterArgs,
		PathEnv:         b.cfg.Runtime.PathEnv,
		Windowed:        b.meta.Windowed,
		OneFile:         b.meta.OneFile,
	}, nil
}

func (b *builder) entryRecord() (*bundle.ModuleRecord, error) {
	for _, record := range b.analysis.Modules {
		if record.QualifiedName == b.analysis.EntryModule {
			return record, nil
		}
	}

	return nil, bundle.Internalf("entry module %q missing from analysis", b.analysis.EntryModule)
}

func (b *builder) collect(ctx context.Context) error {
	logger.Info(ctx, "Collecting distribution")

	opts := &collector.Options{
		Metadata:       b.meta,
		ExecutablePath: b.executablePath,
		DistPath:       b.cfg.DistPath,
		Compress:       b.cfg.CompressDist,
	}

	if !b.meta.OneFile {
		opts.Plan = b.plan
	}

	collected, err := collector.Collect(ctx, opts, b.report)
	if err != nil {
		return err
	}

	b.collected = collected

	return nil
}

func (b *builder) writeArtifacts(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := b.writeWarnings(); err != nil {
		return bundle.AsAssembly(err)
	}

	if err := b.writeReceipt(ctx); err != nil {
		return bundle.AsAssembly(err)
	}

	return nil
}

func (b *builder) logWarnings(ctx context.Context) {
	for _, warning := range b.report.Warnings() {
		logger.WarnKV(ctx, "Build warning", "code", string(warning.Code), "message", warning.Message)
	}
}
