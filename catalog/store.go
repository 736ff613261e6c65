package catalog

import (
	"math/bits"
	"sort"
	"sync"
)

// Store is the Registry's catalog: machines, nodes, channels, and
// connections, with the invariants of spec.md §3 enforced on every
// mutation. All mutating operations and all multi-step read queries
// take the exclusive lock for their entire span; the lock is never
// held across I/O (spec.md §5) — callers (dispatch handlers) publish
// status events and write responses after the call returns.
type Store struct {
	mu sync.RWMutex

	machines map[string]*Machine
	nodes    map[string]*Node
	channels map[ChannelKey]*Channel
	// connections is keyed by the FromKey of the connection, since a
	// channel may anchor at most one outbound connection (spec.md §3).
	connections map[ChannelKey]*Connection

	// Secondary indexes for O(1) cascade lookups.
	nodesByMachine       map[string]map[string]struct{}
	channelsByNode       map[string]map[ChannelKey]struct{}
	connectionsByChannel map[ChannelKey]map[ChannelKey]struct{} // channel -> connections referencing it (as either endpoint)
}

// NewStore creates an empty catalog.
func NewStore() *Store {
	return &Store{
		machines:             make(map[string]*Machine),
		nodes:                make(map[string]*Node),
		channels:             make(map[ChannelKey]*Channel),
		connections:          make(map[ChannelKey]*Connection),
		nodesByMachine:       make(map[string]map[string]struct{}),
		channelsByNode:       make(map[string]map[ChannelKey]struct{}),
		connectionsByChannel: make(map[ChannelKey]map[ChannelKey]struct{}),
	}
}

func requireName(field, name string) error {
	if name == "" {
		return argErr(field, "must not be empty")
	}
	return nil
}

// sortedChannelKeys returns the keys of a ChannelKey-set map in
// (nodeName, path) order, so cascades that walk it emit status events
// in a reproducible sequence rather than Go's randomized map order
// (spec.md §4.B's tie-breaking rule).
func sortedChannelKeys(set map[ChannelKey]struct{}) []ChannelKey {
	keys := make([]ChannelKey, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].NodeName != keys[j].NodeName {
			return keys[i].NodeName < keys[j].NodeName
		}
		return keys[i].Path < keys[j].Path
	})
	return keys
}

// ---------------------------------------------------------------------
// Machines
// ---------------------------------------------------------------------

// AddMachine adds a machine. Re-adding an identical (name, ipv4) pair is
// a no-op success (spec.md §4.B idempotence); adding the same name with
// a different address is a Conflict.
func (s *Store) AddMachine(name, ipv4 string) error {
	if err := requireName("name", name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.machines[name]; ok {
		if existing.IPv4Address == ipv4 {
			return nil
		}
		return conflict("machine " + name + " already exists with a different address")
	}
	s.machines[name] = &Machine{Name: name, IPv4Address: ipv4}
	return nil
}

// RemoveMachine removes a machine. Per the resolved Open Question
// (spec.md §9, SPEC_FULL.md §4.B), machine removal is always explicit —
// it is never triggered by a node's removal, even when the machine is
// left with zero nodes. Removing a machine that still has nodes fails
// with Conflict; callers must remove its nodes first.
func (s *Store) RemoveMachine(name string) error {
	if err := requireName("name", name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.machines[name]; !ok {
		return notFound("machine", name)
	}
	if nodes, ok := s.nodesByMachine[name]; ok && len(nodes) > 0 {
		return conflict("machine " + name + " still has dependent nodes")
	}
	delete(s.machines, name)
	delete(s.nodesByMachine, name)
	return nil
}

// IsMachinePresent reports whether a machine with this name exists.
func (s *Store) IsMachinePresent(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.machines[name]
	return ok
}

// CountMachines returns the number of machines.
func (s *Store) CountMachines() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.machines)
}

// MachineNames returns all machine names in sorted order.
func (s *Store) MachineNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.machines))
	for n := range s.machines {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ---------------------------------------------------------------------
// Nodes
// ---------------------------------------------------------------------

// AddNode adds a node to an existing machine. Fails if the machine is
// absent, the node name is already present, or the endpoint is already
// bound to another node.
func (s *Store) AddNode(name, machine string, launch LaunchDetails, serviceType ServiceType, endpoint Endpoint) error {
	if err := requireName("name", name); err != nil {
		return err
	}
	if err := requireName("machine", machine); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.machines[machine]; !ok {
		return notFound("machine", machine)
	}
	if _, ok := s.nodes[name]; ok {
		return conflict("node " + name + " already exists")
	}
	for _, n := range s.nodes {
		if n.Endpoint == endpoint {
			return conflict("endpoint already bound to node " + n.Name)
		}
	}

	s.nodes[name] = &Node{
		Name:        name,
		MachineName: machine,
		ServiceType: serviceType,
		Endpoint:    endpoint,
		Launch:      launch,
	}
	if s.nodesByMachine[machine] == nil {
		s.nodesByMachine[machine] = make(map[string]struct{})
	}
	s.nodesByMachine[machine][name] = struct{}{}
	return nil
}

// RemovalReport describes everything a node removal cascaded into, so
// the caller (dispatch) can publish status events in the cascade order
// spec.md §4.B mandates: connections, then channels, then the node.
type RemovalReport struct {
	RemovedConnections []Connection
	RemovedChannels     []Channel
	RemovedNode         string
}

// RemoveNode removes a node, cascading to every channel it owns and
// every connection touching those channels: for each channel, its
// connections are removed first, then the channel itself.
func (s *Store) RemoveNode(name string) (*RemovalReport, error) {
	if err := requireName("name", name); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[name]
	if !ok {
		return nil, notFound("node", name)
	}

	report := &RemovalReport{RemovedNode: name}

	// Cascade: for each channel on this node (in path order, so the
	// emitted event sequence is reproducible — spec.md §4.B), remove
	// referencing connections first, then the channel itself.
	for _, key := range sortedChannelKeys(s.channelsByNode[name]) {
		for _, connKey := range sortedChannelKeys(s.connectionsByChannel[key]) {
			if conn, ok := s.connections[connKey]; ok {
				report.RemovedConnections = append(report.RemovedConnections, *conn)
				s.removeConnectionLocked(connKey)
			}
		}
		if ch, ok := s.channels[key]; ok {
			report.RemovedChannels = append(report.RemovedChannels, *ch)
			s.removeChannelLocked(key)
		}
	}

	delete(s.nodes, name)
	if set, ok := s.nodesByMachine[node.MachineName]; ok {
		delete(set, name)
	}
	delete(s.channelsByNode, name)

	return report, nil
}

// IsNodePresent reports whether a node with this name exists.
func (s *Store) IsNodePresent(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nodes[name]
	return ok
}

// CountNodes returns the total number of nodes.
func (s *Store) CountNodes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// NodeNamesOn returns the sorted names of nodes on a machine.
func (s *Store) NodeNamesOn(machine string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.nodesByMachine[machine]))
	for n := range s.nodesByMachine[machine] {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CountNodesOn returns the number of nodes on a machine.
func (s *Store) CountNodesOn(machine string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodesByMachine[machine])
}

// NodeInfo returns the full record for a node, including launch
// details and its optional application tag.
func (s *Store) NodeInfo(name string) (NodeInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	node, ok := s.nodes[name]
	if !ok {
		return NodeInfo{}, notFound("node", name)
	}
	return NodeInfo{Node: *node}, nil
}

// AllNodeInfo returns every node, ordered by (machineName, nodeName) per
// spec.md §4.B's tie-breaking rule.
func (s *Store) AllNodeInfo() []NodeInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allNodeInfoLocked("")
}

// AllNodeInfoOn returns every node on one machine, ordered by node name.
func (s *Store) AllNodeInfoOn(machine string) []NodeInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allNodeInfoLocked(machine)
}

func (s *Store) allNodeInfoLocked(machineFilter string) []NodeInfo {
	var result []NodeInfo
	for _, node := range s.nodes {
		if machineFilter != "" && node.MachineName != machineFilter {
			continue
		}
		result = append(result, NodeInfo{Node: *node})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].MachineName != result[j].MachineName {
			return result[i].MachineName < result[j].MachineName
		}
		return result[i].Name < result[j].Name
	})
	return result
}

// ---------------------------------------------------------------------
// Applications
// ---------------------------------------------------------------------

// SetApplicationForNode sets (or overwrites) the application tag on a
// node.
func (s *Store) SetApplicationForNode(node, application string) error {
	if err := requireName("node", node); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[node]
	if !ok {
		return notFound("node", node)
	}
	n.Application = application
	return nil
}

// GetApplicationForNode returns the application tag for a node (empty
// string if unset).
func (s *Store) GetApplicationForNode(node string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[node]
	if !ok {
		return "", notFound("node", node)
	}
	return n.Application, nil
}

// ---------------------------------------------------------------------
// Channels
// ---------------------------------------------------------------------

// AddChannel adds a channel to a node. Fails if the node is absent or
// (node, path) is already taken.
func (s *Store) AddChannel(node, path string, direction Direction, dataType string, modes Mode) error {
	if err := requireName("node", node); err != nil {
		return err
	}
	if err := requireName("path", path); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[node]; !ok {
		return notFound("node", node)
	}
	key := ChannelKey{NodeName: node, Path: path}
	if _, ok := s.channels[key]; ok {
		return conflict("channel " + node + path + " already exists")
	}

	s.channels[key] = &Channel{
		NodeName:  node,
		Path:      path,
		Direction: direction,
		DataType:  dataType,
		Modes:     modes,
	}
	if s.channelsByNode[node] == nil {
		s.channelsByNode[node] = make(map[ChannelKey]struct{})
	}
	s.channelsByNode[node][key] = struct{}{}
	return nil
}

// RemoveChannel removes one channel, cascading to any connection
// referencing it.
func (s *Store) RemoveChannel(node, path string) ([]Connection, error) {
	if err := requireName("node", node); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ChannelKey{NodeName: node, Path: path}
	if _, ok := s.channels[key]; !ok {
		return nil, notFound("channel", node+" "+path)
	}

	var removed []Connection
	for _, connKey := range sortedChannelKeys(s.connectionsByChannel[key]) {
		if conn, ok := s.connections[connKey]; ok {
			removed = append(removed, *conn)
			s.removeConnectionLocked(connKey)
		}
	}
	s.removeChannelLocked(key)
	return removed, nil
}

// RemoveChannelsForNode removes every channel on a node (and cascades
// their connections), without removing the node itself.
func (s *Store) RemoveChannelsForNode(node string) ([]Channel, []Connection, error) {
	if err := requireName("node", node); err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[node]; !ok {
		return nil, nil, notFound("node", node)
	}

	var removedChannels []Channel
	var removedConnections []Connection
	for _, key := range sortedChannelKeys(s.channelsByNode[node]) {
		for _, connKey := range sortedChannelKeys(s.connectionsByChannel[key]) {
			if conn, ok := s.connections[connKey]; ok {
				removedConnections = append(removedConnections, *conn)
				s.removeConnectionLocked(connKey)
			}
		}
		if ch, ok := s.channels[key]; ok {
			removedChannels = append(removedChannels, *ch)
			s.removeChannelLocked(key)
		}
	}
	return removedChannels, removedConnections, nil
}

// removeChannelLocked deletes a channel and its indexes. Caller holds
// the write lock and must have already removed any referencing
// connections.
func (s *Store) removeChannelLocked(key ChannelKey) {
	ch, ok := s.channels[key]
	if !ok {
		return
	}
	delete(s.channels, key)
	if set, ok := s.channelsByNode[ch.NodeName]; ok {
		delete(set, key)
	}
	delete(s.connectionsByChannel, key)
}

// GetInformationForChannel returns one channel's record.
func (s *Store) GetInformationForChannel(node, path string) (Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[ChannelKey{NodeName: node, Path: path}]
	if !ok {
		return Channel{}, notFound("channel", node+" "+path)
	}
	return *ch, nil
}

// GetInformationForAllChannelsOnNode returns every channel on a node,
// ordered by path.
func (s *Store) GetInformationForAllChannelsOnNode(node string) []Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []Channel
	for key := range s.channelsByNode[node] {
		result = append(result, *s.channels[key])
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result
}

// AllChannels returns every channel in the catalog, ordered by
// (nodeName, path).
func (s *Store) AllChannels() []Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		result = append(result, *ch)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].NodeName != result[j].NodeName {
			return result[i].NodeName < result[j].NodeName
		}
		return result[i].Path < result[j].Path
	})
	return result
}

// ---------------------------------------------------------------------
// Connections
// ---------------------------------------------------------------------

// dataTypeCompatible reports whether two data types may be joined by a
// connection: byte-equal, or either side is the wildcard.
func dataTypeCompatible(a, b string) bool {
	return a == b || a == WildcardDataType || b == WildcardDataType
}

// negotiateMode picks the lowest-numbered bit shared by both mode sets,
// per spec.md §4.B's stable tie-break rule.
func negotiateMode(a, b Mode) (Mode, bool) {
	shared := a & b
	if shared == 0 {
		return 0, false
	}
	return Mode(1) << bits.TrailingZeros32(uint32(shared)), true
}

// AddConnection joins an output channel to an input channel. Both
// endpoints must exist with the right directions, have compatible data
// types and modes, and each endpoint must be free of any existing
// connection.
func (s *Store) AddConnection(fromNode, fromPath, toNode, toPath, dataType string, mode Mode) (Connection, error) {
	if err := requireName("fromNode", fromNode); err != nil {
		return Connection{}, err
	}
	if err := requireName("toNode", toNode); err != nil {
		return Connection{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	fromKey := ChannelKey{NodeName: fromNode, Path: fromPath}
	toKey := ChannelKey{NodeName: toNode, Path: toPath}

	fromCh, ok := s.channels[fromKey]
	if !ok {
		return Connection{}, notFound("channel", fromNode+" "+fromPath)
	}
	toCh, ok := s.channels[toKey]
	if !ok {
		return Connection{}, notFound("channel", toNode+" "+toPath)
	}
	if fromCh.Direction != DirectionOutput {
		return Connection{}, argErr("fromPath", "must be an Output channel")
	}
	if toCh.Direction != DirectionInput {
		return Connection{}, argErr("toPath", "must be an Input channel")
	}
	if !dataTypeCompatible(dataType, fromCh.DataType) || !dataTypeCompatible(dataType, toCh.DataType) {
		return Connection{}, conflict("incompatible data types")
	}
	negotiated, ok := negotiateMode(mode, fromCh.Modes&toCh.Modes)
	if !ok {
		return Connection{}, conflict("incompatible transport modes")
	}
	if _, ok := s.connections[fromKey]; ok {
		return Connection{}, conflict("channel " + fromNode + " " + fromPath + " already connected")
	}
	if s.channelHasInboundConnection(toKey) {
		return Connection{}, conflict("channel " + toNode + " " + toPath + " already connected")
	}

	conn := Connection{
		FromNode: fromNode,
		FromPath: fromPath,
		ToNode:   toNode,
		ToPath:   toPath,
		DataType: dataType,
		Mode:     negotiated,
	}
	s.connections[fromKey] = &conn
	s.indexConnection(fromKey, toKey)

	fromCh.InUse = true
	toCh.InUse = true

	return conn, nil
}

// channelHasInboundConnection reports whether any connection targets
// this channel as its "to" endpoint.
func (s *Store) channelHasInboundConnection(toKey ChannelKey) bool {
	for _, conn := range s.connections {
		if conn.ToKey() == toKey {
			return true
		}
	}
	return false
}

func (s *Store) indexConnection(fromKey, toKey ChannelKey) {
	for _, key := range []ChannelKey{fromKey, toKey} {
		if s.connectionsByChannel[key] == nil {
			s.connectionsByChannel[key] = make(map[ChannelKey]struct{})
		}
		s.connectionsByChannel[key][fromKey] = struct{}{}
	}
}

// RemoveConnection removes the connection anchored at the given output
// endpoint, clearing inUse on both endpoints if no other connection
// remains.
func (s *Store) RemoveConnection(fromNode, fromPath string) error {
	if err := requireName("fromNode", fromNode); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	fromKey := ChannelKey{NodeName: fromNode, Path: fromPath}
	if _, ok := s.connections[fromKey]; !ok {
		return notFound("connection", fromNode+" "+fromPath)
	}
	s.removeConnectionLocked(fromKey)
	return nil
}

// removeConnectionLocked deletes a connection and clears inUse on its
// endpoints. Caller holds the write lock.
func (s *Store) removeConnectionLocked(fromKey ChannelKey) {
	conn, ok := s.connections[fromKey]
	if !ok {
		return
	}
	toKey := conn.ToKey()
	delete(s.connections, fromKey)
	if set, ok := s.connectionsByChannel[fromKey]; ok {
		delete(set, fromKey)
	}
	if set, ok := s.connectionsByChannel[toKey]; ok {
		delete(set, fromKey)
	}
	if ch, ok := s.channels[fromKey]; ok {
		ch.InUse = s.channelStillConnectedLocked(fromKey)
	}
	if ch, ok := s.channels[toKey]; ok {
		ch.InUse = s.channelStillConnectedLocked(toKey)
	}
}

func (s *Store) channelStillConnectedLocked(key ChannelKey) bool {
	if set, ok := s.connectionsByChannel[key]; ok && len(set) > 0 {
		return true
	}
	return false
}

// GetInformationForAllConnectionsOnNode returns connections with either
// endpoint on the given node, ordered by (fromNode, fromPath).
func (s *Store) GetInformationForAllConnectionsOnNode(node string) []Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []Connection
	for _, conn := range s.connections {
		if conn.FromNode == node || conn.ToNode == node {
			result = append(result, *conn)
		}
	}
	sortConnections(result)
	return result
}

// GetInformationForAllConnectionsOnMachine returns connections with
// either endpoint on a node hosted by the given machine.
func (s *Store) GetInformationForAllConnectionsOnMachine(machine string) []Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	onMachine := s.nodesByMachine[machine]
	var result []Connection
	for _, conn := range s.connections {
		if _, ok := onMachine[conn.FromNode]; ok {
			result = append(result, *conn)
			continue
		}
		if _, ok := onMachine[conn.ToNode]; ok {
			result = append(result, *conn)
		}
	}
	sortConnections(result)
	return result
}

// GetInformationForAllConnections returns every connection in the
// catalog, ordered by (fromNode, fromPath).
func (s *Store) GetInformationForAllConnections() []Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]Connection, 0, len(s.connections))
	for _, conn := range s.connections {
		result = append(result, *conn)
	}
	sortConnections(result)
	return result
}

func sortConnections(conns []Connection) {
	sort.Slice(conns, func(i, j int) bool {
		if conns[i].FromNode != conns[j].FromNode {
			return conns[i].FromNode < conns[j].FromNode
		}
		return conns[i].FromPath < conns[j].FromPath
	})
}

// ---------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------

// Stats returns a point-in-time snapshot of catalog size.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Machines:    len(s.machines),
		Nodes:       len(s.nodes),
		Channels:    len(s.channels),
		Connections: len(s.connections),
	}
}
