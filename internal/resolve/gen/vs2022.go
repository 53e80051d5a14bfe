package gen

import (
	"context"
	"encoding/xml"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.trai.ch/zerr"
)

// ErrNoMsbuild is returned by VS2022Gen.Invoke when MSBuild can't be located.
var ErrNoMsbuild = zerr.New("msbuild not found, set $MSBUILD or add it to PATH")

//
// structures for .vcxproj
//

type VSProject struct {
	XMLName              xml.Name                `xml:"Project"`
	DefaultTargets       string                  `xml:"DefaultTargets,attr"`
	ToolsVersion         string                  `xml:"ToolsVersion,attr"`
	XMLNS                string                  `xml:"xmlns,attr"`
	PropertyGroups       []VSPropertyGroup       `xml:"PropertyGroup"`
	ItemGroups           []VSItemGroup           `xml:"ItemGroup"`
	ItemDefinitionGroups []VSItemDefinitionGroup `xml:"ItemDefinitionGroup"`
	Imports              []VSImport              `xml:"Import"`
}

type VSItemGroup struct {
	Label                 string                   `xml:"Label,attr,omitempty"`
	ProjectConfigurations []VSProjectConfiguration `xml:"ProjectConfiguration,omitempty"`
	ClCompiles            []VSClCompile            `xml:"ClCompile,omitempty"`
}

type VSProjectConfiguration struct {
	Include       string `xml:"Include,attr"`
	Configuration string `xml:"Configuration"`
	Platform      string `xml:"Platform"`
}

type VSClCompile struct {
	Include        string `xml:"Include,attr"`
	CompileAs      string `xml:"CompileAs,omitempty"`
	ObjectFileName string `xml:"ObjectFileName,omitempty"`
}

type VSPropertyGroup struct {
	Label                        string `xml:"Label,attr,omitempty"`
	Condition                    string `xml:"Condition,attr,omitempty"`
	PreferredToolArchitecture    string `xml:"PreferredToolArchitecture,omitempty"`
	ProjectGuid                  string `xml:"ProjectGuid,omitempty"`
	Keyword                      string `xml:"Keyword,omitempty"`
	WindowsTargetPlatformVersion string `xml:"WindowsTargetPlatformVersion,omitempty"`
	ProjectName                  string `xml:"ProjectName,omitempty"`
	ConfigurationType            string `xml:"ConfigurationType,omitempty"`
	PlatformToolset              string `xml:"PlatformToolset,omitempty"`
	CharacterSet                 string `xml:"CharacterSet,omitempty"`
	OutDir                       string `xml:"OutDir,omitempty"`
	IntDir                       string `xml:"IntDir,omitempty"`
	TargetName                   string `xml:"TargetName,omitempty"`
	TargetExt                    string `xml:"TargetExt,omitempty"`
	LinkIncremental              *bool  `xml:"LinkIncremental,omitempty"`
	UseDebugLibraries            *bool  `xml:"UseDebugLibraries,omitempty"`
	WholeProgramOptimization     *bool  `xml:"WholeProgramOptimization,omitempty"`
}

type VSImport struct {
	Project   string `xml:"Project,attr"`
	Condition string `xml:"Condition,attr,omitempty"`
	Label     string `xml:"Label,attr,omitempty"`
}

type VSItemDefinitionGroup struct {
	Condition string          `xml:"Condition,attr"`
	ClCompile VSCppCompileDef `xml:"ClCompile"`
	Link      VSLinkDef       `xml:"Link"`
}

type VSCppCompileDef struct {
	WarningLevel                 string `xml:"WarningLevel"`
	SDLCheck                     bool   `xml:"SDLCheck"`
	AdditionalIncludeDirectories string `xml:"AdditionalIncludeDirectories"`
	PreprocessorDefinitions      string `xml:"PreprocessorDefinitions"`
	ConformanceMode              bool   `xml:"ConformanceMode"`
	Optimization                 string `xml:"Optimization,omitempty"`
	BasicRuntimeChecks           string `xml:"BasicRuntimeChecks,omitempty"`
	DebugInformationFormat       string `xml:"DebugInformationFormat,omitempty"`
	RuntimeLibrary               string `xml:"RuntimeLibrary,omitempty"`
	FunctionLevelLinking         *bool  `xml:"FunctionLevelLinking,omitempty"`
	IntrinsicFunctions           *bool  `xml:"IntrinsicFunctions,omitempty"`
}

type VSLinkDef struct {
	SubSystem                string `xml:"SubSystem"`
	GenerateDebugInformation *bool  `xml:"GenerateDebugInformation,omitempty"`
	AdditionalDependencies   string `xml:"AdditionalDependencies"`
	AdditionalOptions        string `xml:"AdditionalOptions,omitempty"`
	EnableCOMDATFolding      *bool  `xml:"EnableCOMDATFolding,omitempty"`
	OptimizeReferences       *bool  `xml:"OptimizeReferences,omitempty"`
}

type VSFiltersProject struct {
	XMLName      xml.Name             `xml:"Project"`
	ToolsVersion string               `xml:"ToolsVersion,attr"`
	XMLNS        string               `xml:"xmlns,attr"`
	ItemGroups   []VSFiltersItemGroup `xml:"ItemGroup"`
}

type VSFiltersItemGroup struct {
	ClCompiles []VSFiltersClCompile `xml:"ClCompile,omitempty"`
	Filters    []VSFiltersFilter    `xml:"Filter,omitempty"`
}

type VSFiltersClCompile struct {
	Include string `xml:"Include,attr"`
	Filter  string `xml:"Filter"`
}

type VSFiltersFilter struct {
	Include          string `xml:"Include,attr"`
	UniqueIdentifier string `xml:"UniqueIdentifier"`
	Extensions       string `xml:"Extensions"`
}

const msbuildNS = "http://schemas.microsoft.com/developer/msbuild/2003"

const (
	debugCondition   = "'$(Configuration)|$(Platform)'=='Debug|x64'"
	releaseCondition = "'$(Configuration)|$(Platform)'=='Release|x64'"
)

//
// generator
//

// VS2022Gen writes a Visual Studio 2022 solution with one .vcxproj per
// target and builds it with MSBuild.
type VS2022Gen struct {
	targets map[string]Target
	// project files rendered by Generate, keyed by path relative to the build dir
	files map[string]string
	err   error
}

func NewVS2022Gen() *VS2022Gen {
	return &VS2022Gen{
		targets: make(map[string]Target),
	}
}

// SetCompiler is a no-op: MSBuild picks the MSVC toolset itself.
func (g *VS2022Gen) SetCompiler(cc, cxx string) {}

func (g *VS2022Gen) AddTarget(t Target) {
	g.targets[t.Name] = t
}

func (g *VS2022Gen) targetNames() []string {
	names := make([]string, 0, len(g.targets))
	for name := range g.targets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// BuildFile names the solution after the first executable target.
func (g *VS2022Gen) BuildFile() string {
	names := g.targetNames()
	if len(names) == 0 {
		return "kfile.sln"
	}
	for _, name := range names {
		if t := g.targets[name]; !t.IsLib {
			return projectName(t) + ".sln"
		}
	}
	return projectName(g.targets[names[0]]) + ".sln"
}

// projectName strips the platform extension off the output name
func projectName(t Target) string {
	return strings.TrimSuffix(t.Name, filepath.Ext(t.Name))
}

// guid derives a stable uppercase GUID from key
func guid(key string) string {
	return strings.ToUpper(uuid.NewSHA1(uuid.NameSpaceOID, []byte("kfile/"+key)).String())
}

// Generate renders the .vcxproj and .vcxproj.filters of every target and
// returns the solution file.
func (g *VS2022Gen) Generate() string {
	g.files = make(map[string]string)
	g.err = nil

	names := g.targetNames()
	for _, name := range names {
		t := g.targets[name]
		proj := projectName(t)

		vcxproj, err := marshalXML(g.project(proj, t))
		if err != nil {
			g.err = zerr.Wrap(err, "failed to render "+proj+".vcxproj")
			return ""
		}
		filters, err := marshalXML(g.filters(t))
		if err != nil {
			g.err = zerr.Wrap(err, "failed to render "+proj+".vcxproj.filters")
			return ""
		}
		g.files[filepath.Join(proj, proj+".vcxproj")] = vcxproj
		g.files[filepath.Join(proj, proj+".vcxproj.filters")] = filters
	}

	return g.solution(names)
}

func marshalXML(v any) (string, error) {
	output, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return xml.Header + string(output) + "\n", nil
}

func (g *VS2022Gen) solution(names []string) string {
	var sb strings.Builder

	writeln(&sb, "Microsoft Visual Studio Solution File, Format Version 12.00")
	writeln(&sb, "# Visual Studio Version 17")
	for _, name := range names {
		proj := projectName(g.targets[name])
		// Windows (Visual C++) https://github.com/VISTALL/visual-studio-project-type-guids
		writeln(&sb,
			`Project("{8BC9CEB8-8B4A-11D0-8D11-00A0C91BC942}") = "`, proj, `", "`, proj, `\`, proj, `.vcxproj", "{`, guid(proj), `}"`,
		)
		writeln(&sb, "EndProject")
	}
	writeln(&sb, "Global")
	writeln(&sb, "\tGlobalSection(SolutionConfigurationPlatforms) = preSolution")
	writeln(&sb, "\t\tDebug|x64 = Debug|x64")
	writeln(&sb, "\t\tRelease|x64 = Release|x64")
	writeln(&sb, "\tEndGlobalSection")
	writeln(&sb, "\tGlobalSection(ProjectConfigurationPlatforms) = postSolution")
	for _, name := range names {
		id := guid(projectName(g.targets[name]))
		writeln(&sb, "\t\t{", id, "}.Debug|x64.ActiveCfg = Debug|x64")
		writeln(&sb, "\t\t{", id, "}.Debug|x64.Build.0 = Debug|x64")
		writeln(&sb, "\t\t{", id, "}.Release|x64.ActiveCfg = Release|x64")
		writeln(&sb, "\t\t{", id, "}.Release|x64.Build.0 = Release|x64")
	}
	writeln(&sb, "\tEndGlobalSection")
	writeln(&sb, "\tGlobalSection(SolutionProperties) = preSolution")
	writeln(&sb, "\t\tHideSolutionNode = FALSE")
	writeln(&sb, "\tEndGlobalSection")
	writeln(&sb, "\tGlobalSection(ExtensibilityGlobals) = postSolution")
	writeln(&sb, "\t\tSolutionGuid = {", guid(g.BuildFile()), "}")
	writeln(&sb, "\tEndGlobalSection")
	writeln(&sb, "EndGlobal")

	return sb.String()
}

func (g *VS2022Gen) project(proj string, t Target) VSProject {
	clCompiles := make([]VSClCompile, 0, len(t.Sources))
	for _, src := range objectsFor(t) {
		c := VSClCompile{
			Include: src.src,
			// objects mirror the source tree so equal basenames don't collide
			ObjectFileName: `$(IntDir)` + strings.ReplaceAll(src.rel, "/", `\`) + ".obj",
		}
		if src.isCxx {
			c.CompileAs = "CompileAsCpp"
		}
		clCompiles = append(clCompiles, c)
	}

	trueVal, falseVal := true, false
	ext := filepath.Ext(t.Name)
	configType := "Application"
	if t.IsLib {
		configType = "StaticLibrary"
	}

	return VSProject{
		DefaultTargets: "Build",
		ToolsVersion:   "17.0",
		XMLNS:          msbuildNS,
		PropertyGroups: []VSPropertyGroup{
			{PreferredToolArchitecture: "x64"},
			{
				Label:                        "Globals",
				ProjectGuid:                  "{" + guid(proj) + "}",
				Keyword:                      "Win32Proj",
				WindowsTargetPlatformVersion: "10.0",
				ProjectName:                  proj,
			},
			{
				Condition:         debugCondition,
				Label:             "Configuration",
				ConfigurationType: configType,
				PlatformToolset:   "v143",
				CharacterSet:      "Unicode",
				UseDebugLibraries: &trueVal,
			},
			{
				Condition:                releaseCondition,
				Label:                    "Configuration",
				ConfigurationType:        configType,
				PlatformToolset:          "v143",
				CharacterSet:             "Unicode",
				UseDebugLibraries:        &falseVal,
				WholeProgramOptimization: &trueVal,
			},
			// Debug output lands next to the solution, where `kfile run` looks for it
			{
				Condition:       debugCondition,
				OutDir:          `$(SolutionDir)`,
				IntDir:          `$(ProjectDir)int\Debug\`,
				TargetName:      proj,
				TargetExt:       ext,
				LinkIncremental: &trueVal,
			},
			{
				Condition:       releaseCondition,
				OutDir:          `$(SolutionDir)Release\`,
				IntDir:          `$(ProjectDir)int\Release\`,
				TargetName:      proj,
				TargetExt:       ext,
				LinkIncremental: &falseVal,
			},
		},
		ItemGroups: []VSItemGroup{
			{
				Label: "ProjectConfigurations",
				ProjectConfigurations: []VSProjectConfiguration{
					{Include: "Debug|x64", Configuration: "Debug", Platform: "x64"},
					{Include: "Release|x64", Configuration: "Release", Platform: "x64"},
				},
			},
			{ClCompiles: clCompiles},
		},
		ItemDefinitionGroups: []VSItemDefinitionGroup{
			{
				Condition: debugCondition,
				ClCompile: VSCppCompileDef{
					WarningLevel:                 "Level3",
					SDLCheck:                     true,
					AdditionalIncludeDirectories: parseIncludes(t.Cflags),
					PreprocessorDefinitions:      parseDefines(t.Cflags, true),
					ConformanceMode:              true,
					Optimization:                 "Disabled",
					BasicRuntimeChecks:           "EnableFastChecks",
					DebugInformationFormat:       "ProgramDatabase",
					RuntimeLibrary:               "MultiThreadedDebugDLL",
				},
				Link: VSLinkDef{
					SubSystem:                subSystem(t.Ldflags),
					GenerateDebugInformation: &trueVal,
					AdditionalDependencies:   parseLibraries(t.Ldflags, !t.IsLib),
					AdditionalOptions:        "%(AdditionalOptions) /machine:x64",
				},
			},
			{
				Condition: releaseCondition,
				ClCompile: VSCppCompileDef{
					WarningLevel:                 "Level3",
					SDLCheck:                     true,
					AdditionalIncludeDirectories: parseIncludes(t.Cflags),
					PreprocessorDefinitions:      parseDefines(t.Cflags, false),
					ConformanceMode:              true,
					Optimization:                 "MaxSpeed",
					RuntimeLibrary:               "MultiThreadedDLL",
					FunctionLevelLinking:         &trueVal,
					IntrinsicFunctions:           &trueVal,
				},
				Link: VSLinkDef{
					SubSystem:                subSystem(t.Ldflags),
					GenerateDebugInformation: &falseVal,
					AdditionalDependencies:   parseLibraries(t.Ldflags, !t.IsLib),
					EnableCOMDATFolding:      &trueVal,
					OptimizeReferences:       &trueVal,
					AdditionalOptions:        "%(AdditionalOptions) /machine:x64",
				},
			},
		},
		Imports: []VSImport{
			{Project: `$(VCTargetsPath)\Microsoft.Cpp.Default.props`},
			{Project: `$(VCTargetsPath)\Microsoft.Cpp.props`},
			{Project: `$(UserRootDir)\Microsoft.Cpp.$(Platform).user.props`, Condition: `exists('$(UserRootDir)\Microsoft.Cpp.$(Platform).user.props')`, Label: "LocalAppDataPlatform"},
			{Project: `$(VCTargetsPath)\Microsoft.Cpp.targets`},
		},
	}
}

func (g *VS2022Gen) filters(t Target) VSFiltersProject {
	clCompiles := make([]VSFiltersClCompile, 0, len(t.Sources))
	for _, src := range t.Sources {
		clCompiles = append(clCompiles, VSFiltersClCompile{Include: src, Filter: "Source Files"})
	}
	return VSFiltersProject{
		ToolsVersion: "17.0",
		XMLNS:        msbuildNS,
		ItemGroups: []VSFiltersItemGroup{
			{ClCompiles: clCompiles},
			{Filters: []VSFiltersFilter{{
				Include:          "Source Files",
				UniqueIdentifier: "{" + guid(projectName(t)+"/Source Files") + "}",
				Extensions:       "cpp;c;cc;cxx;c++;m;mm;def;odl;idl;hpj;bat;asm;asmx",
			}}},
		},
	}
}

// Invoke writes the project files next to the solution and builds the
// Debug configuration with MSBuild.
func (g *VS2022Gen) Invoke(ctx context.Context, buildDir string) error {
	if g.err != nil {
		return g.err
	}
	if err := g.writeProjects(buildDir); err != nil {
		return err
	}

	msbuild := findMsbuild(os.Getenv, exec.LookPath)
	if msbuild == "" {
		return ErrNoMsbuild
	}

	cmd := exec.CommandContext(ctx, msbuild, g.BuildFile(), "-p:Configuration=Debug", "-p:Platform=x64", "-nologo")
	cmd.Dir = buildDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}

func (g *VS2022Gen) writeProjects(buildDir string) error {
	paths := make([]string, 0, len(g.files))
	for path := range g.files {
		paths = append(paths, path)
	}
	slices.Sort(paths)

	for _, rel := range paths {
		path := filepath.Join(buildDir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(g.files[rel]), 0o644); err != nil {
			return zerr.Wrap(err, "failed to write "+rel)
		}
	}
	return nil
}

func findMsbuild(getenv func(string) string, lookPath func(string) (string, error)) string {
	if m := getenv("MSBUILD"); m != "" {
		return m
	}
	for _, name := range []string{"msbuild", "MSBuild.exe"} {
		if path, err := lookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// subSystem maps the GUI link flag onto the MSVC linker subsystem
func subSystem(ldflags []string) string {
	if slices.Contains(ldflags, "-mwindows") {
		return "Windows"
	}
	return "Console"
}

func parseIncludes(cflags []string) string {
	var includes []string
	for _, flag := range cflags {
		if after, ok := strings.CutPrefix(flag, "-I"); ok {
			includes = append(includes, after)
		}
	}
	return strings.Join(append(includes, "%(AdditionalIncludeDirectories)"), ";")
}

func parseDefines(cflags []string, isDebug bool) string {
	defines := []string{"WIN32", "_WINDOWS"}
	if isDebug {
		defines = append(defines, "_DEBUG")
	} else {
		defines = append(defines, "NDEBUG")
	}
	for _, flag := range cflags {
		if after, ok := strings.CutPrefix(flag, "-D"); ok {
			defines = append(defines, after)
		}
	}
	return strings.Join(append(defines, "%(PreprocessorDefinitions)"), ";")
}

func parseLibraries(ldflags []string, isExe bool) string {
	var libs []string
	if isExe {
		libs = append(libs, "kernel32.lib", "user32.lib", "gdi32.lib", "winspool.lib", "comdlg32.lib", "advapi32.lib", "shell32.lib", "ole32.lib", "oleaut32.lib", "uuid.lib")
	}
	for _, flag := range ldflags {
		if after, ok := strings.CutPrefix(flag, "-l"); ok {
			if !strings.HasSuffix(after, ".lib") {
				after += ".lib"
			}
			libs = append(libs, after)
		}
	}
	return strings.Join(append(libs, "%(AdditionalDependencies)"), ";")
}
