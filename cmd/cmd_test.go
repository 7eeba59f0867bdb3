package cmd

import (
	"bytes"
	"testing"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRootCmd_Subcommands 测试子命令注册
func TestRootCmd_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range GetRootCmd().Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"server", "migrate", "policy"} {
		assert.True(t, names[want], want)
	}
	assert.NotNil(t, GetRootCmd().PersistentFlags().Lookup("config"))
}

// TestPrintPolicy 测试策略输出
func TestPrintPolicy(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printPolicy(&buf, policy.Default()))

	out := buf.String()
	assert.Contains(t, out, "review quorum")
	assert.Contains(t, out, "aiMaturity")
	assert.Contains(t, out, string(policy.RoleProjectManager))
	assert.Contains(t, out, string(policy.PermAssessmentApprove))
}

// TestPolicyCmd_OpenFGAModel 测试输出 OpenFGA 模型
func TestPolicyCmd_OpenFGAModel(t *testing.T) {
	var buf bytes.Buffer
	root := GetRootCmd()
	root.SetOut(&buf)
	root.SetArgs([]string{"policy", "--openfga-model"})
	t.Cleanup(func() {
		root.SetOut(nil)
		root.SetArgs(nil)
	})

	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "type assessment")
}
