package handlers

import (
	"context"
	"errors"
	"fmt"

	"neorest/application/commands"
	"neorest/application/ports"
	"neorest/domain/core/classes"
	apperrors "neorest/pkg/errors"
	"neorest/pkg/extensions"

	"go.uber.org/zap"
)

// DefineClassesHandler loads class declarations into the registry
type DefineClassesHandler struct {
	registry *classes.Registry
	parser   ports.SchemaParser
	hooks    *extensions.HookManager
	logger   *zap.Logger
}

func NewDefineClassesHandler(registry *classes.Registry, parser ports.SchemaParser, hooks *extensions.HookManager, logger *zap.Logger) *DefineClassesHandler {
	return &DefineClassesHandler{
		registry: registry,
		parser:   parser,
		hooks:    hooks,
		logger:   logger,
	}
}

// Handle parses the source and defines every declared class.
// All declarations are validated before the first one is registered, since
// registry entries cannot be rolled back. HookSchemaLoaded then sees every
// name, new or existing, so a mirror lost to an earlier rollback is rebuilt.
func (h *DefineClassesHandler) Handle(ctx context.Context, cmd commands.DefineClassesCommand) (commands.DefineClassesResult, error) {
	defs, err := h.parser.Parse(cmd.Source, cmd.Filename)
	if err != nil {
		return commands.DefineClassesResult{}, apperrors.NewBadRequestError(fmt.Sprintf("Can't load class declarations: %v", err))
	}
	for _, def := range defs {
		if err := classes.ValidateDefinition(def); err != nil {
			return commands.DefineClassesResult{}, apperrors.NewBadRequestError(err.Error())
		}
	}

	result := commands.DefineClassesResult{Defined: []string{}, Existing: []string{}}
	names := make([]string, 0, len(defs))
	for _, def := range defs {
		meta, created, err := h.registry.Define(ctx, def)
		if errors.Is(err, classes.ErrInvalidClassName) {
			return commands.DefineClassesResult{}, apperrors.NewBadRequestError(err.Error())
		}
		if err != nil {
			return commands.DefineClassesResult{}, err
		}
		if created {
			result.Defined = append(result.Defined, meta.Name())
		} else {
			result.Existing = append(result.Existing, meta.Name())
		}
		names = append(names, meta.Name())
	}

	if err := h.hooks.Execute(ctx, extensions.HookSchemaLoaded, names); err != nil {
		return commands.DefineClassesResult{}, err
	}
	h.logger.Info("Classes loaded",
		zap.String("source", cmd.Filename),
		zap.Strings("defined", result.Defined),
		zap.Int("existing", len(result.Existing)),
	)
	return result, nil
}
