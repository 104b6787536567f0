package handlers

import (
	"neorest/application/commands"
	"neorest/application/commands/bus"
)

// Register binds every command handler to the bus
func Register(b *bus.CommandBus, nodes *NodeHandlers, props *SetPropertyHandler, links *LinkNodesHandler, classes *DefineClassesHandler) error {
	registrations := []struct {
		cmd     bus.Command
		handler bus.CommandHandler
	}{
		{commands.CreateNodeCommand{}, bus.Typed(nodes.Create)},
		{commands.UpdateNodeCommand{}, bus.Typed(nodes.Update)},
		{commands.DeleteNodeCommand{}, bus.Typed(nodes.Delete)},
		{commands.SetPropertyCommand{}, bus.Typed(props.Handle)},
		{commands.LinkNodesCommand{}, bus.Typed(links.Handle)},
		{commands.DefineClassesCommand{}, bus.Typed(classes.Handle)},
	}
	for _, r := range registrations {
		if err := b.Register(r.cmd, r.handler); err != nil {
			return err
		}
	}
	return nil
}
