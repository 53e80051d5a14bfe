package gen

import (
	"context"
	"encoding/xml"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kongruentTargets(base string) (exe, lib Target) {
	exe = Target{
		Name:    "Kongruent.exe",
		BaseDir: base,
		Sources: []string{
			filepath.Join(base, "Sources", "kong.c"),
			filepath.Join(base, "Sources", "backends", "hlsl.cpp"),
		},
		Cflags:  []string{"-D_CRT_SECURE_NO_WARNINGS", "-I" + filepath.Join(base, "Sources")},
		Ldflags: []string{"-ld3dcompiler"},
	}
	lib = Target{
		Name:    "kong.lib",
		BaseDir: base,
		Sources: []string{filepath.Join(base, "Sources", "kong.c")},
		IsLib:   true,
		Cflags:  []string{"-DKONG_LIBRARY"},
		Ldflags: []string{"-ld3dcompiler"},
	}
	return exe, lib
}

func TestVS2022Gen_Generate(t *testing.T) {
	base := filepath.FromSlash("/work/kong")
	exe, lib := kongruentTargets(base)

	g := NewVS2022Gen()
	g.SetCompiler("cl", "cl")
	g.AddTarget(lib)
	g.AddTarget(exe)

	sln := g.Generate()
	assert.Equal(t, "Kongruent.sln", g.BuildFile())

	id := guid("Kongruent")
	assert.Contains(t, sln, "Microsoft Visual Studio Solution File, Format Version 12.00\n")
	assert.Contains(t, sln, `Project("{8BC9CEB8-8B4A-11D0-8D11-00A0C91BC942}") = "Kongruent", "Kongruent\Kongruent.vcxproj", "{`+id+`}"`+"\n")
	assert.Contains(t, sln, "\t\t{"+id+"}.Debug|x64.Build.0 = Debug|x64\n")

	assert.Contains(t, sln, `"kong", "kong\kong.vcxproj", "{`+guid("kong")+`}"`)
	assert.Less(t, strings.Index(sln, `= "Kongruent"`), strings.Index(sln, `= "kong"`))

	assert.Len(t, g.files, 4)
	require.Contains(t, g.files, filepath.Join("Kongruent", "Kongruent.vcxproj.filters"))
	vcxproj := g.files[filepath.Join("Kongruent", "Kongruent.vcxproj")]
	assert.True(t, strings.HasPrefix(vcxproj, xml.Header))

	var proj VSProject
	require.NoError(t, xml.Unmarshal([]byte(vcxproj), &proj))
	assert.Equal(t, "{"+id+"}", proj.PropertyGroups[1].ProjectGuid)
	assert.Equal(t, "Application", proj.PropertyGroups[2].ConfigurationType)

	var libProj VSProject
	require.NoError(t, xml.Unmarshal([]byte(g.files[filepath.Join("kong", "kong.vcxproj")]), &libProj))
	assert.Equal(t, "StaticLibrary", libProj.PropertyGroups[2].ConfigurationType)
	assert.Equal(t, "kong", libProj.PropertyGroups[4].TargetName)
	assert.Equal(t, ".lib", libProj.PropertyGroups[4].TargetExt)
}

func TestVS2022Gen_ProjectFields(t *testing.T) {
	base := filepath.FromSlash("/work/kong")
	exe, _ := kongruentTargets(base)

	g := NewVS2022Gen()
	proj := g.project("Kongruent", exe)

	assert.Equal(t, "Application", proj.PropertyGroups[2].ConfigurationType)
	assert.Equal(t, "Kongruent", proj.PropertyGroups[4].TargetName)
	assert.Equal(t, ".exe", proj.PropertyGroups[4].TargetExt)
	assert.Equal(t, `$(SolutionDir)`, proj.PropertyGroups[4].OutDir)

	debug := proj.ItemDefinitionGroups[0]
	assert.Equal(t, debugCondition, debug.Condition)
	assert.Equal(t, "WIN32;_WINDOWS;_DEBUG;_CRT_SECURE_NO_WARNINGS;%(PreprocessorDefinitions)", debug.ClCompile.PreprocessorDefinitions)
	assert.Equal(t, filepath.Join(base, "Sources")+";%(AdditionalIncludeDirectories)", debug.ClCompile.AdditionalIncludeDirectories)
	assert.True(t, strings.HasSuffix(debug.Link.AdditionalDependencies, ";uuid.lib;d3dcompiler.lib;%(AdditionalDependencies)"))
	assert.Equal(t, "Console", debug.Link.SubSystem)

	release := proj.ItemDefinitionGroups[1]
	assert.Equal(t, "WIN32;_WINDOWS;NDEBUG;_CRT_SECURE_NO_WARNINGS;%(PreprocessorDefinitions)", release.ClCompile.PreprocessorDefinitions)

	sources := proj.ItemGroups[1].ClCompiles
	require.Len(t, sources, 2)
	assert.Equal(t, filepath.Join(base, "Sources", "kong.c"), sources[0].Include)
	assert.Empty(t, sources[0].CompileAs)
	assert.Equal(t, `$(IntDir)Sources\kong.c.obj`, sources[0].ObjectFileName)
	assert.Equal(t, "CompileAsCpp", sources[1].CompileAs)
	assert.Equal(t, `$(IntDir)Sources\backends\hlsl.cpp.obj`, sources[1].ObjectFileName)

	exe.Ldflags = append(exe.Ldflags, "-mwindows")
	proj = g.project("Kongruent", exe)
	assert.Equal(t, "Windows", proj.ItemDefinitionGroups[0].Link.SubSystem)
}

func TestVS2022Gen_LibraryLinksNoSystemLibs(t *testing.T) {
	_, lib := kongruentTargets(filepath.FromSlash("/work/kong"))
	proj := NewVS2022Gen().project("kong", lib)
	assert.Equal(t, "d3dcompiler.lib;%(AdditionalDependencies)", proj.ItemDefinitionGroups[0].Link.AdditionalDependencies)
	assert.Equal(t, "WIN32;_WINDOWS;_DEBUG;KONG_LIBRARY;%(PreprocessorDefinitions)", proj.ItemDefinitionGroups[0].ClCompile.PreprocessorDefinitions)
}

func TestVS2022Gen_StableGUIDs(t *testing.T) {
	exe, _ := kongruentTargets(filepath.FromSlash("/work/kong"))

	a := NewVS2022Gen()
	a.AddTarget(exe)
	b := NewVS2022Gen()
	b.AddTarget(exe)
	assert.Equal(t, a.Generate(), b.Generate())

	assert.NotEqual(t, guid("Kongruent"), guid("Other"))
	assert.Regexp(t, `^[0-9A-F]{8}-[0-9A-F]{4}-5[0-9A-F]{3}-[89AB][0-9A-F]{3}-[0-9A-F]{12}$`, guid("Kongruent"))
}

func TestVS2022Gen_InvokeWritesProjects(t *testing.T) {
	t.Setenv("MSBUILD", "")
	t.Setenv("PATH", t.TempDir())

	buildDir := t.TempDir()
	exe, _ := kongruentTargets(filepath.FromSlash("/work/kong"))
	g := NewVS2022Gen()
	g.AddTarget(exe)
	g.Generate()

	err := g.Invoke(context.Background(), buildDir)
	assert.True(t, errors.Is(err, ErrNoMsbuild))

	data, err := os.ReadFile(filepath.Join(buildDir, "Kongruent", "Kongruent.vcxproj"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "<ProjectName>Kongruent</ProjectName>")
	assert.FileExists(t, filepath.Join(buildDir, "Kongruent", "Kongruent.vcxproj.filters"))
}

func TestFindMsbuild(t *testing.T) {
	env := func(vars map[string]string) func(string) string {
		return func(k string) string { return vars[k] }
	}
	onPath := func(names ...string) func(string) (string, error) {
		return func(name string) (string, error) {
			for _, n := range names {
				if n == name {
					return `C:\VS\` + name, nil
				}
			}
			return "", errors.New("not found")
		}
	}

	assert.Equal(t, `D:\msbuild.exe`, findMsbuild(env(map[string]string{"MSBUILD": `D:\msbuild.exe`}), onPath("msbuild")))
	assert.Equal(t, `C:\VS\MSBuild.exe`, findMsbuild(env(nil), onPath("MSBuild.exe")))
	assert.Equal(t, "", findMsbuild(env(nil), onPath()))
}
