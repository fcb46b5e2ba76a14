package packaging

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kolide/msixkit/pkg/packagekit"
	"github.com/kolide/msixkit/pkg/packagekit/sdktools"
	"github.com/stretchr/testify/require"
	p12 "software.sslmate.com/src/go-pkcs12"
)

// fakeSDK records calls, and routes each binary to a helper mode.
type fakeSDK struct {
	sync.Mutex
	calls []string
}

func (f *fakeSDK) execCC(ctx context.Context, argv0 string, args ...string) *exec.Cmd {
	f.Lock()
	f.calls = append(f.calls, filepath.Base(argv0))
	f.Unlock()

	var helperArgs []string
	switch filepath.Base(argv0) {
	case sdktools.MakeAppx:
		helperArgs = []string{"touch", "/p"}
	case sdktools.MakePri:
		helperArgs = []string{"touch", "/of"}
		if len(args) > 0 && args[0] == "createconfig" {
			helperArgs = []string{"touch", "/cf"}
		}
	case "widget.exe":
		helperArgs = []string{"version"}
	case sdktools.SignTool:
		helperArgs = []string{"exit0"}
	default:
		helperArgs = []string{"exit1"}
	}

	cs := append([]string{"-test.run=TestHelperProcess", "--"}, append(helperArgs, args...)...)
	return exec.CommandContext(ctx, os.Args[0], cs...) //nolint:forbidigo // test helper
}

func testMetadata() *Metadata {
	return &Metadata{
		IdentityName:         "ExampleCorp.Widget",
		Publisher:            "CN=Example Corp",
		PublisherDisplayName: "Example Corp",
		DisplayName:          "Widget",
		Version:              "1.4.0",
		Executable:           "widget.exe",
	}
}

// setupBuild makes a dist directory holding one app, and a fake SDK.
func setupBuild(t *testing.T) (Options, *fakeSDK) {
	base := t.TempDir()

	dist := filepath.Join(base, "dist")
	require.NoError(t, os.MkdirAll(filepath.Join(dist, "widget"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dist, "widget", "widget.exe"), []byte("MZ"), 0755))

	sdkRoot := filepath.Join(base, "sdk")
	for _, tool := range []string{sdktools.MakeAppx, sdktools.MakePri, sdktools.SignTool} {
		toolPath := filepath.Join(sdkRoot, "bin", "10.0.22621.0", "x64", tool)
		require.NoError(t, os.MkdirAll(filepath.Dir(toolPath), 0755))
		require.NoError(t, os.WriteFile(toolPath, []byte("MZ"), 0755))
	}

	sdk := &fakeSDK{}

	return Options{
		Metadata:  testMetadata(),
		DistDir:   dist,
		BuildDir:  filepath.Join(base, "build"),
		OutputDir: filepath.Join(base, "out"),
		Arch:      X64,
		ToolArch:  X64,
		SDKRoot:   sdkRoot,
		Platform:  packagekit.PlatformFunc(func() bool { return true }),
		ExecCC:    sdk.execCC,
		LookupEnv: func(string) (string, bool) { return "", false },
	}, sdk
}

func TestBuild(t *testing.T) {
	t.Parallel()

	po, sdk := setupBuild(t)
	ctx := packagekit.InitContext(context.TODO())

	require.NoError(t, Build(ctx, po))

	packagePath, err := packagekit.GetFromContext(ctx, packagekit.ContextPackagePathKey)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(po.OutputDir, "widget.msix"), packagePath)
	require.FileExists(t, packagePath)

	version, err := packagekit.GetFromContext(ctx, packagekit.ContextPackageVersionKey)
	require.NoError(t, err)
	require.Equal(t, "1.4.0.0", version)

	manifest, err := os.ReadFile(filepath.Join(po.BuildDir, "widget", "app", "AppxManifest.xml"))
	require.NoError(t, err)
	require.Contains(t, string(manifest), `Version="1.4.0.0"`)
	require.Contains(t, string(manifest), `ProcessorArchitecture="x64"`)
	require.Contains(t, string(manifest), `Executable="widget.exe"`)

	require.Equal(t, []string{sdktools.MakePri, sdktools.MakePri, sdktools.MakeAppx}, sdk.calls)
}

func TestBuildSigned(t *testing.T) {
	t.Parallel()

	po, sdk := setupBuild(t)
	po.SkipPri = true
	po.PfxPath = writeTestPfx(t, "hunter2")
	po.PfxPassword = "hunter2"
	po.TimestampServer = "http://timestamp.example.com"

	ctx := packagekit.InitContext(context.TODO())
	require.NoError(t, Build(ctx, po))

	require.Equal(t, []string{sdktools.MakeAppx, sdktools.SignTool}, sdk.calls)

	signed, err := packagekit.GetFromContext(ctx, packagekit.ContextSignedKey)
	require.NoError(t, err)
	require.Equal(t, "true", signed)
}

func writeTestPfx(t *testing.T, password string) string {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(7),
		Subject:      pkix.Name{CommonName: "Example Corp"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageCodeSigning},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	pfxData, err := p12.Encode(rand.Reader, key, cert, nil, password)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "signing.pfx")
	require.NoError(t, os.WriteFile(path, pfxData, 0600))
	return path
}

func TestBuildDetectsVersion(t *testing.T) {
	t.Parallel()

	po, sdk := setupBuild(t)
	po.Metadata.Version = ""
	po.DetectVersion = true
	po.SkipPri = true

	ctx := packagekit.InitContext(context.TODO())
	require.NoError(t, Build(ctx, po))

	version, err := packagekit.GetFromContext(ctx, packagekit.ContextPackageVersionKey)
	require.NoError(t, err)
	require.Equal(t, "0.5.6.19", version)

	require.Equal(t, []string{"widget.exe", sdktools.MakeAppx}, sdk.calls)

	// the caller's metadata is untouched
	require.Empty(t, po.Metadata.Version)
}

func TestBuildNoVersion(t *testing.T) {
	t.Parallel()

	po, sdk := setupBuild(t)
	po.Metadata.Version = ""

	err := Build(context.TODO(), po)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no version")
	require.Empty(t, sdk.calls)
}

func TestBuildMissingSource(t *testing.T) {
	t.Parallel()

	po, sdk := setupBuild(t)
	po.PackageName = StaticName("other")
	po.Metadata.Version = ""
	po.DetectVersion = true

	err := Build(context.TODO(), po)
	require.Error(t, err)
	require.Contains(t, err.Error(), "directory not found")
	require.Empty(t, sdk.calls)
}

func TestBuildNotTargetPlatform(t *testing.T) {
	t.Parallel()

	po, sdk := setupBuild(t)
	po.Platform = packagekit.PlatformFunc(func() bool { return false })

	require.NoError(t, Build(context.TODO(), po))
	require.Empty(t, sdk.calls)
	require.FileExists(t, filepath.Join(po.BuildDir, "widget", "app", "AppxManifest.xml"))
	require.NoFileExists(t, filepath.Join(po.OutputDir, "widget.msix"))
}

func TestBuildDetectVersionNotTargetPlatform(t *testing.T) {
	t.Parallel()

	po, sdk := setupBuild(t)
	po.Metadata.Version = ""
	po.DetectVersion = true
	po.Platform = packagekit.PlatformFunc(func() bool { return false })

	err := Build(context.TODO(), po)
	require.Error(t, err)
	require.Contains(t, err.Error(), "set one explicitly")
	require.Empty(t, sdk.calls)
	require.NoDirExists(t, filepath.Join(po.BuildDir, "widget"))
}

func TestBuildIntoDistDir(t *testing.T) {
	t.Parallel()

	po, sdk := setupBuild(t)
	po.BuildDir = po.DistDir

	require.Error(t, Build(context.TODO(), po))
	require.Empty(t, sdk.calls)

	// the app is untouched, and nothing was staged inside it
	require.FileExists(t, filepath.Join(po.DistDir, "widget", "widget.exe"))
	require.NoDirExists(t, filepath.Join(po.DistDir, "widget", "app"))
}

func TestBuildNoMetadata(t *testing.T) {
	t.Parallel()

	po, _ := setupBuild(t)
	po.Metadata = nil
	require.Error(t, Build(context.TODO(), po))
}

func TestOptionsLayout(t *testing.T) {
	t.Parallel()

	var tests = []struct {
		name       string
		po         Options
		sourceDir  string
		outputFile string
		wantErr    bool
	}{
		{
			name:       "explicit source",
			po:         Options{PackageName: StaticName("Widget"), SourceDir: "/src/app", BuildDir: "/b", OutputDir: "/o"},
			sourceDir:  "/src/app",
			outputFile: filepath.Join("/o", "widget.msix"),
		},
		{
			name:       "source from dist",
			po:         Options{Metadata: &Metadata{DisplayName: "Widget"}, DistDir: "/dist", BuildDir: "/b"},
			sourceDir:  filepath.Join("/dist", "widget"),
			outputFile: filepath.Join("/b", "out", "widget.msix"),
		},
		{
			name:       "default build dir",
			po:         Options{PackageName: StaticName("widget"), SourceDir: "/src/app"},
			sourceDir:  "/src/app",
			outputFile: filepath.Join("build", "out", "widget.msix"),
		},
		{
			name:    "no name",
			po:      Options{SourceDir: "/src/app"},
			wantErr: true,
		},
		{
			name:    "no source",
			po:      Options{PackageName: StaticName("widget")},
			wantErr: true,
		},
		{
			name:    "build dir is the dist dir",
			po:      Options{PackageName: StaticName("widget"), DistDir: "/dist", BuildDir: "/dist"},
			wantErr: true,
		},
		{
			name:    "build dir inside source",
			po:      Options{PackageName: StaticName("widget"), SourceDir: "/src/app", BuildDir: "/src/app/build"},
			wantErr: true,
		},
		{
			name:    "source inside staging",
			po:      Options{PackageName: StaticName("widget"), SourceDir: "/b/widget/app/bin", BuildDir: "/b"},
			wantErr: true,
		},
		{
			name:       "sibling dirs with a shared prefix",
			po:         Options{PackageName: StaticName("widget"), SourceDir: "/b/widget/apple", BuildDir: "/b"},
			sourceDir:  "/b/widget/apple",
			outputFile: filepath.Join("/b", "out", "widget.msix"),
		},
	}

	for _, tt := range tests {
		layout, err := tt.po.Layout()
		if tt.wantErr {
			require.Error(t, err, tt.name)
			continue
		}
		require.NoError(t, err, tt.name)
		require.Equal(t, tt.sourceDir, layout.SourceDirectory, tt.name)
		require.Equal(t, tt.outputFile, layout.OutputPackageFile, tt.name)
	}
}
