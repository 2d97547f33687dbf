package detour

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpcodeClassification(t *testing.T) {
	assert.True(t, isConditionalJumpByte(0x74)) // JZ
	assert.False(t, isConditionalJumpByte(0x90))
	assert.True(t, isLoopOrJcxz(0xE2)) // LOOP
	assert.True(t, isLongConditionalJump(0x0F, 0x84))
	assert.False(t, isLongConditionalJump(0x0F, 0x10))
}

// TestEmitRel32Jump checks the on-target jump encoding: E9 plus a
// displacement computed against the instruction's own end, per §6's
// binary layout invariant for the x86 tail jump.
func TestEmitRel32Jump(t *testing.T) {
	from := uintptr(0x1000)
	dest := uintptr(0x2000)

	code := emitRel32Jump(dest, from)
	require.Len(t, code, 5)
	require.Equal(t, byte(0xE9), code[0])

	disp := int32(code[1]) | int32(code[2])<<8 | int32(code[3])<<16 | int32(code[4])<<24
	assert.Equal(t, int64(dest)-int64(from+shortJumpLen), int64(disp))
}

func TestBuildOnTargetJumpPlain(t *testing.T) {
	target := uintptr(0x4000)
	dest := uintptr(0x5000)
	atTarget, atPadding := buildOnTargetJump(target, dest, false, 0)
	assert.Len(t, atTarget, 5)
	assert.Nil(t, atPadding)
}

func TestBuildOnTargetJumpPatchAbove(t *testing.T) {
	target := uintptr(0x4000)
	padding := target - shortJumpLen
	dest := uintptr(0x5000)

	atTarget, atPadding := buildOnTargetJump(target, dest, true, padding)
	require.Equal(t, []byte{0xEB, 0xFB}, atTarget)
	require.Len(t, atPadding, 5)
	require.Equal(t, byte(0xE9), atPadding[0])
}
