// Package status multicasts typed catalog-change notifications, per
// spec.md §4.G. It is modeled on the teacher's commbus.InMemoryCommBus
// Publish/Subscribe idiom (commbus/bus.go): fire-and-forget delivery,
// no acknowledgement, a structured logger wired the same way, and a
// fixed synchronous Publish call made from whatever goroutine performs
// the mutation — there is no separate publisher goroutine, matching
// spec.md §5's "publisher sends from whatever task performs the
// mutation" rule.
package status

import "github.com/nimo-project/registry/value"

// Kind names a catalog-change event, matching spec.md §4.G's table.
type Kind string

const (
	MachineAdded      Kind = "machine-added"
	MachineRemoved    Kind = "machine-removed"
	NodeAdded         Kind = "node-added"
	NodeRemoved       Kind = "node-removed"
	ChannelAdded      Kind = "channel-added"
	ChannelRemoved    Kind = "channel-removed"
	ConnectionAdded   Kind = "connection-added"
	ConnectionRemoved Kind = "connection-removed"
	ApplicationSet    Kind = "application-set"
)

// Event is one status-multicast datagram: [eventKind, subjectName, details…].
type Event struct {
	Kind    Kind
	Subject string
	Details []value.Value
}

// Encode renders the event as the wire array value spec.md §4.G
// describes.
func (e Event) Encode() value.Value {
	elems := make([]value.Value, 0, len(e.Details)+2)
	elems = append(elems, value.String(string(e.Kind)), value.String(e.Subject))
	elems = append(elems, e.Details...)
	return value.Array(elems)
}

// MachineAddedEvent builds a machine-added event.
func MachineAddedEvent(name, ipv4 string) Event {
	return Event{Kind: MachineAdded, Subject: name, Details: []value.Value{value.String(ipv4)}}
}

// MachineRemovedEvent builds a machine-removed event.
func MachineRemovedEvent(name string) Event {
	return Event{Kind: MachineRemoved, Subject: name}
}

// NodeAddedEvent builds a node-added event.
func NodeAddedEvent(name, machine, serviceType string, address string, port int) Event {
	return Event{
		Kind:    NodeAdded,
		Subject: name,
		Details: []value.Value{
			value.String(machine),
			value.String(serviceType),
			value.String(address),
			value.Integer(int64(port)),
		},
	}
}

// NodeRemovedEvent builds a node-removed event.
func NodeRemovedEvent(name string) Event {
	return Event{Kind: NodeRemoved, Subject: name}
}

// ChannelAddedEvent builds a channel-added event.
func ChannelAddedEvent(node, path, direction, dataType string) Event {
	return Event{
		Kind:    ChannelAdded,
		Subject: node,
		Details: []value.Value{value.String(path), value.String(direction), value.String(dataType)},
	}
}

// ChannelRemovedEvent builds a channel-removed event.
func ChannelRemovedEvent(node, path string) Event {
	return Event{Kind: ChannelRemoved, Subject: node, Details: []value.Value{value.String(path)}}
}

// ConnectionAddedEvent builds a connection-added event.
func ConnectionAddedEvent(fromNode, fromPath, toNode, toPath, dataType string, mode uint32) Event {
	return Event{
		Kind:    ConnectionAdded,
		Subject: fromNode,
		Details: []value.Value{
			value.String(fromPath),
			value.String(toNode),
			value.String(toPath),
			value.String(dataType),
			value.Integer(int64(mode)),
		},
	}
}

// ConnectionRemovedEvent builds a connection-removed event.
func ConnectionRemovedEvent(fromNode, fromPath, toNode, toPath string) Event {
	return Event{
		Kind:    ConnectionRemoved,
		Subject: fromNode,
		Details: []value.Value{value.String(fromPath), value.String(toNode), value.String(toPath)},
	}
}

// ApplicationSetEvent builds an application-set event.
func ApplicationSetEvent(node, application string) Event {
	return Event{Kind: ApplicationSet, Subject: node, Details: []value.Value{value.String(application)}}
}
