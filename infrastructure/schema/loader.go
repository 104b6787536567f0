package schema

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"neorest/application/commands"
	"neorest/application/commands/bus"

	"go.uber.org/zap"
)

// Sender dispatches commands; satisfied by the command bus.
type Sender interface {
	Send(ctx context.Context, cmd bus.Command) (interface{}, error)
}

// Loader applies schema files by sending DefineClassesCommand for each file.
type Loader struct {
	sender Sender
	logger *zap.Logger
}

func NewLoader(sender Sender, logger *zap.Logger) *Loader {
	return &Loader{sender: sender, logger: logger}
}

// LoadPath applies a single file, or every schema file of a directory in name order.
func (l *Loader) LoadPath(ctx context.Context, path string) ([]string, error) {
	files, err := schemaFiles(path)
	if err != nil {
		return nil, err
	}

	var defined []string
	for _, file := range files {
		names, err := l.LoadFile(ctx, file)
		if err != nil {
			return defined, err
		}
		defined = append(defined, names...)
	}
	return defined, nil
}

// LoadFile applies one file and returns the classes it newly defined.
func (l *Loader) LoadFile(ctx context.Context, file string) ([]string, error) {
	src, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}

	out, err := l.sender.Send(ctx, commands.DefineClassesCommand{Source: src, Filename: file})
	if err != nil {
		return nil, fmt.Errorf("failed to load schema file %s: %w", file, err)
	}
	result, ok := out.(commands.DefineClassesResult)
	if !ok {
		return nil, fmt.Errorf("unexpected define classes result %T", out)
	}

	l.logger.Info("Schema file loaded",
		zap.String("file", file),
		zap.Strings("defined", result.Defined),
	)
	return result.Defined, nil
}

func schemaFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat schema path: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema directory: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), FileExtension) {
			continue
		}
		files = append(files, filepath.Join(path, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}
