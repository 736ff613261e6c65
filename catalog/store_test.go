package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPopulatedStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	require.NoError(t, s.AddMachine("mach1", "192.168.1.10"))
	require.NoError(t, s.AddNode("nodeA", "mach1", LaunchDetails{ExecPath: "/bin/a"}, ServiceGeneric, Endpoint{Address: "192.168.1.10", Port: 9000}))
	require.NoError(t, s.AddNode("nodeB", "mach1", LaunchDetails{ExecPath: "/bin/b"}, ServiceGeneric, Endpoint{Address: "192.168.1.10", Port: 9001}))
	require.NoError(t, s.AddChannel("nodeA", "out", DirectionOutput, "int16", ModeTCP|ModeUDP))
	require.NoError(t, s.AddChannel("nodeB", "in", DirectionInput, "int16", ModeTCP|ModeUDP))
	return s
}

func TestAddMachineIdempotent(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.AddMachine("m1", "10.0.0.1"))
	require.NoError(t, s.AddMachine("m1", "10.0.0.1"))
	assert.Equal(t, 1, s.CountMachines())
}

func TestAddMachineConflictingAddress(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.AddMachine("m1", "10.0.0.1"))
	err := s.AddMachine("m1", "10.0.0.2")
	require.Error(t, err)
	var conflictErr *ConflictError
	assert.ErrorAs(t, err, &conflictErr)
}

func TestRemoveMachineWithNodesConflicts(t *testing.T) {
	s := newPopulatedStore(t)
	err := s.RemoveMachine("mach1")
	require.Error(t, err)
	var conflictErr *ConflictError
	assert.ErrorAs(t, err, &conflictErr)
}

func TestAddNodeRequiresMachine(t *testing.T) {
	s := NewStore()
	err := s.AddNode("n1", "ghost", LaunchDetails{}, ServiceGeneric, Endpoint{Address: "1.2.3.4", Port: 1})
	require.Error(t, err)
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestAddNodeDuplicateEndpointConflicts(t *testing.T) {
	s := newPopulatedStore(t)
	err := s.AddNode("nodeC", "mach1", LaunchDetails{}, ServiceGeneric, Endpoint{Address: "192.168.1.10", Port: 9000})
	require.Error(t, err)
	var conflictErr *ConflictError
	assert.ErrorAs(t, err, &conflictErr)
}

func TestAddConnectionAndCascadeOnNodeRemoval(t *testing.T) {
	s := newPopulatedStore(t)
	conn, err := s.AddConnection("nodeA", "out", "nodeB", "in", "int16", ModeTCP|ModeUDP)
	require.NoError(t, err)
	assert.Equal(t, ModeTCP, conn.Mode, "lowest-numbered shared bit must be chosen")

	outCh, err := s.GetInformationForChannel("nodeA", "out")
	require.NoError(t, err)
	assert.True(t, outCh.InUse)

	report, err := s.RemoveNode("nodeA")
	require.NoError(t, err)
	assert.Len(t, report.RemovedConnections, 1)
	assert.Len(t, report.RemovedChannels, 1)

	_, err = s.GetInformationForChannel("nodeA", "out")
	require.Error(t, err)

	// The surviving endpoint on nodeB must no longer show in-use.
	inCh, err := s.GetInformationForChannel("nodeB", "in")
	require.NoError(t, err)
	assert.False(t, inCh.InUse)
}

func TestAddConnectionWrongDirectionRejected(t *testing.T) {
	s := newPopulatedStore(t)
	_, err := s.AddConnection("nodeB", "in", "nodeA", "out", "int16", ModeTCP)
	require.Error(t, err)
	var argErr *ArgumentError
	assert.ErrorAs(t, err, &argErr)
}

func TestAddConnectionIncompatibleDataTypeRejected(t *testing.T) {
	s := newPopulatedStore(t)
	require.NoError(t, s.AddChannel("nodeA", "out2", DirectionOutput, "double", ModeTCP))
	_, err := s.AddConnection("nodeA", "out2", "nodeB", "in", "double", ModeTCP)
	require.Error(t, err)
	var conflictErr *ConflictError
	assert.ErrorAs(t, err, &conflictErr)
}

func TestAddConnectionWildcardDataTypeAccepted(t *testing.T) {
	s := newPopulatedStore(t)
	require.NoError(t, s.AddChannel("nodeA", "outW", DirectionOutput, WildcardDataType, ModeTCP))
	conn, err := s.AddConnection("nodeA", "outW", "nodeB", "in", "int16", ModeTCP)
	require.NoError(t, err)
	assert.Equal(t, "int16", conn.DataType)
}

func TestAddConnectionChannelAlreadyConnected(t *testing.T) {
	s := newPopulatedStore(t)
	_, err := s.AddConnection("nodeA", "out", "nodeB", "in", "int16", ModeTCP)
	require.NoError(t, err)
	require.NoError(t, s.AddChannel("nodeB", "in2", DirectionInput, "int16", ModeTCP))
	_, err = s.AddConnection("nodeA", "out", "nodeB", "in2", "int16", ModeTCP)
	require.Error(t, err)
	var conflictErr *ConflictError
	assert.ErrorAs(t, err, &conflictErr)
}

func TestRemoveChannelCascadesConnection(t *testing.T) {
	s := newPopulatedStore(t)
	_, err := s.AddConnection("nodeA", "out", "nodeB", "in", "int16", ModeTCP)
	require.NoError(t, err)

	removed, err := s.RemoveChannel("nodeA", "out")
	require.NoError(t, err)
	assert.Len(t, removed, 1)

	conns := s.GetInformationForAllConnections()
	assert.Empty(t, conns)
}

func TestApplicationTag(t *testing.T) {
	s := newPopulatedStore(t)
	_, err := s.GetApplicationForNode("nodeA")
	require.NoError(t, err)

	require.NoError(t, s.SetApplicationForNode("nodeA", "myApp"))
	app, err := s.GetApplicationForNode("nodeA")
	require.NoError(t, err)
	assert.Equal(t, "myApp", app)
}

func TestAllNodeInfoOrderedByMachineThenName(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.AddMachine("mZ", "10.0.0.1"))
	require.NoError(t, s.AddMachine("mA", "10.0.0.2"))
	require.NoError(t, s.AddNode("n2", "mZ", LaunchDetails{}, ServiceGeneric, Endpoint{Address: "10.0.0.1", Port: 1}))
	require.NoError(t, s.AddNode("n1", "mA", LaunchDetails{}, ServiceGeneric, Endpoint{Address: "10.0.0.2", Port: 2}))

	all := s.AllNodeInfo()
	require.Len(t, all, 2)
	assert.Equal(t, "mA", all[0].MachineName)
	assert.Equal(t, "mZ", all[1].MachineName)
}

func TestGetInformationForAllConnectionsOnMachine(t *testing.T) {
	s := newPopulatedStore(t)
	_, err := s.AddConnection("nodeA", "out", "nodeB", "in", "int16", ModeTCP)
	require.NoError(t, err)

	conns := s.GetInformationForAllConnectionsOnMachine("mach1")
	assert.Len(t, conns, 1)

	conns = s.GetInformationForAllConnectionsOnMachine("ghost-machine")
	assert.Empty(t, conns)
}

func TestStats(t *testing.T) {
	s := newPopulatedStore(t)
	_, err := s.AddConnection("nodeA", "out", "nodeB", "in", "int16", ModeTCP)
	require.NoError(t, err)

	stats := s.Stats()
	assert.Equal(t, 1, stats.Machines)
	assert.Equal(t, 2, stats.Nodes)
	assert.Equal(t, 2, stats.Channels)
	assert.Equal(t, 1, stats.Connections)
}

func TestRemoveNodeUnknownNotFound(t *testing.T) {
	s := NewStore()
	_, err := s.RemoveNode("ghost")
	require.Error(t, err)
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}
