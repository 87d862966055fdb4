package permission_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/silkrt/silk/permission"
)

func TestDefaultPolicyAllowsBuiltins(t *testing.T) {
	p := permission.Default()
	assert.True(t, p.Allows("silk:ping"))
	assert.True(t, p.Allows("silk:appInfo"))
	assert.False(t, p.Allows("fs:readText"))
}

func TestDenyWinsOverAllow(t *testing.T) {
	p := permission.New(permission.Config{
		AllowCommands: []string{"fs:readText"},
		DenyCommands:  []string{"fs:readText"},
	})
	assert.False(t, p.Allows("fs:readText"))
}

func TestNamespaceGrantAllowsAnySubCommand(t *testing.T) {
	p := permission.New(permission.Config{
		NamespaceGrants: map[string][]string{"fs": nil},
	})
	assert.True(t, p.Allows("fs:readText"))
	assert.True(t, p.Allows("fs:writeText"))
	assert.False(t, p.Allows("shell:exec"))
}

func TestNamespaceGrantRestrictsSubCommands(t *testing.T) {
	p := permission.New(permission.Config{
		NamespaceGrants: map[string][]string{"fs": {"readText"}},
	})
	assert.True(t, p.Allows("fs:readText"))
	assert.False(t, p.Allows("fs:writeText"))
}

func TestNamespaceDenyStillWins(t *testing.T) {
	p := permission.New(permission.Config{
		NamespaceGrants: map[string][]string{"fs": nil},
		DenyCommands:    []string{"fs:readText"},
	})
	assert.False(t, p.Allows("fs:readText"))
	assert.True(t, p.Allows("fs:writeText"))
}

func TestCommandWithoutNamespaceSeparatorNeedsExactAllow(t *testing.T) {
	p := permission.New(permission.Config{})
	assert.False(t, p.Allows("nope"))
}

func TestAllowsPathEmptyRootsPermitsEverything(t *testing.T) {
	p := permission.New(permission.Config{})
	assert.True(t, p.AllowsPath("/etc/passwd", permission.Read))
}

func TestAllowsPathRootPermitsSelfAndChildren(t *testing.T) {
	p := permission.New(permission.Config{FSReadRoots: []string{"/srv/app"}})
	assert.True(t, p.AllowsPath("/srv/app", permission.Read))
	assert.True(t, p.AllowsPath("/srv/app/data.txt", permission.Read))
	assert.True(t, p.AllowsPath("/srv/app/sub/dir/file", permission.Read))
}

func TestAllowsPathRejectsSiblingWithSharedPrefix(t *testing.T) {
	p := permission.New(permission.Config{FSReadRoots: []string{"/foo"}})
	assert.True(t, p.AllowsPath("/foo", permission.Read))
	assert.True(t, p.AllowsPath("/foo/bar", permission.Read))
	assert.False(t, p.AllowsPath("/foobar", permission.Read))
}

func TestAllowsPathRootSlashPermitsEverything(t *testing.T) {
	p := permission.New(permission.Config{FSReadRoots: []string{"/"}})
	assert.True(t, p.AllowsPath("/any/path/at/all", permission.Read))
}

func TestAllowsPathReadAndWriteRootsAreIndependent(t *testing.T) {
	p := permission.New(permission.Config{
		FSReadRoots:  []string{"/srv/read"},
		FSWriteRoots: []string{"/srv/write"},
	})
	assert.True(t, p.AllowsPath("/srv/read/a", permission.Read))
	assert.False(t, p.AllowsPath("/srv/read/a", permission.Write))
	assert.True(t, p.AllowsPath("/srv/write/a", permission.Write))
}

func TestAllowsProgramEmptySetPermitsAny(t *testing.T) {
	p := permission.New(permission.Config{})
	assert.True(t, p.AllowsProgram("rm"))
}

func TestAllowsProgramExactMembership(t *testing.T) {
	p := permission.New(permission.Config{ShellAllowPrograms: []string{"git", "ls"}})
	assert.True(t, p.AllowsProgram("git"))
	assert.False(t, p.AllowsProgram("rm"))
}
