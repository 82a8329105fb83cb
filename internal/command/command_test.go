package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBatch(t *testing.T) {
	batch, err := ParseBatch([]byte(`{"commands":[{"command":"PLAIN_RESPONSE","payload":{"message":"hi"}}]}`))
	require.NoError(t, err)
	require.Len(t, batch.Commands, 1)
	assert.Equal(t, KindPlainResponse, batch.Commands[0].Name)
}

func TestParseBatchEmptyCommands(t *testing.T) {
	batch, err := ParseBatch([]byte(`{"commands":[]}`))
	require.NoError(t, err)
	assert.Empty(t, batch.Commands)
}

func TestParseBatchMissingCommands(t *testing.T) {
	_, err := ParseBatch([]byte(`{"message":"plain prose"}`))
	assert.ErrorIs(t, err, ErrMissingCommands)
}

func TestParseBatchNotJSON(t *testing.T) {
	_, err := ParseBatch([]byte(`sure, here you go!`))
	assert.Error(t, err)
}

func TestPartitionMemoryFirstStable(t *testing.T) {
	cmds := []Command{
		{Name: KindPlainResponse},
		{Name: KindUpdateMemory},
		{Name: KindCreateNote},
		{Name: KindUpdateMemory},
	}
	got := partition(cmds)
	require.Len(t, got, 4)

	// Memory commands first, both groups keeping relative order.
	assert.Equal(t, []int{1, 3, 0, 2}, []int{got[0].pos, got[1].pos, got[2].pos, got[3].pos})
	assert.Equal(t, KindUpdateMemory, got[0].cmd.Name)
	assert.Equal(t, KindUpdateMemory, got[1].cmd.Name)
}

func TestEchoPayloadMalformed(t *testing.T) {
	assert.Equal(t, "{broken", echoPayload([]byte("{broken")))
	assert.Nil(t, echoPayload(nil))
}
