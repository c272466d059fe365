package configresolver

import (
	"testing"

	"edgecored/internal/jsonvalue"
	"edgecored/internal/model"
)

func mustID(t *testing.T, name, ver string) model.ComponentIdentifier {
	t.Helper()
	id, err := model.NewComponentIdentifier(name, ver)
	if err != nil {
		t.Fatalf("id: %v", err)
	}
	return id
}

func TestResolve_MainEntryUnionsRootsAndBuiltins(t *testing.T) {
	redSignal := &model.ComponentRecipe{
		Identifier:           mustID(t, "RedSignal", "1.0.0"),
		DefaultConfiguration: jsonvalue.NewObject(),
	}
	assignment := map[string]*model.ComponentRecipe{"RedSignal": redSignal}

	out, err := Resolve(Input{
		Assignment:                   assignment,
		RootComponentNames:           []string{"RedSignal"},
		BuiltinAutoStartDependencies: []string{"ServiceDiscovery"},
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	main, ok := out["main"]
	if !ok {
		t.Fatalf("expected a synthetic main entry")
	}
	if _, ok := main.Dependencies["RedSignal"]; !ok {
		t.Errorf("main must depend on root component RedSignal")
	}
	if _, ok := main.Dependencies["ServiceDiscovery"]; !ok {
		t.Errorf("main must depend on builtin auto-start ServiceDiscovery")
	}
}

func TestInterpolate_SameComponentConfiguration(t *testing.T) {
	cfg := jsonvalue.NewObject().ObjectSet("port", jsonvalue.NewNumber(8080))
	comp := &ResolvedComponentConfig{Name: "App", Configuration: cfg, Dependencies: map[string]model.DependencyKind{}}
	all := ResolvedConfig{"App": comp}

	got := interpolate("listen on {configuration:/port}", comp, all, nil, "", nil)
	if got != "listen on 8080" {
		t.Fatalf("got %q", got)
	}
}

func TestInterpolate_CrossComponentRequiresDeclaredDependency(t *testing.T) {
	dep := jsonvalue.NewObject().ObjectSet("host", jsonvalue.NewString("10.0.0.1"))
	depComp := &ResolvedComponentConfig{Name: "Broker", Configuration: dep}
	app := &ResolvedComponentConfig{Name: "App", Dependencies: map[string]model.DependencyKind{}}
	all := ResolvedConfig{"App": app, "Broker": depComp}

	var reasons []string
	got := interpolate("connect to {Broker:configuration:/host}", app, all, nil, "", func(c, p, r string) { reasons = append(reasons, r) })
	if got != "connect to {Broker:configuration:/host}" {
		t.Fatalf("non-dependency cross-component reference must be left in place, got %q", got)
	}
	if len(reasons) == 0 {
		t.Fatalf("expected a logged reason")
	}

	app.Dependencies["Broker"] = model.DependencyHard
	got = interpolate("connect to {Broker:configuration:/host}", app, all, nil, "", nil)
	if got != "connect to 10.0.0.1" {
		t.Fatalf("declared dependency cross-component reference should resolve, got %q", got)
	}
}

func TestInterpolate_ArtifactsAndKernelNamespaces(t *testing.T) {
	comp := &ResolvedComponentConfig{Name: "App", Version: "1.0.0", Configuration: jsonvalue.NewObject()}
	all := ResolvedConfig{"App": comp}
	paths := func(name, version string) (string, string) {
		return "/store/artifacts/" + name + "/" + version, "/store/artifacts-decompressed/" + name + "/" + version
	}
	got := interpolate("{artifacts:path}/run.sh", comp, all, paths, "/srv/edgecored", nil)
	if got != "/store/artifacts/App/1.0.0/run.sh" {
		t.Fatalf("got %q", got)
	}
	got = interpolate("root is {kernel:rootPath}", comp, all, paths, "/srv/edgecored", nil)
	if got != "root is /srv/edgecored" {
		t.Fatalf("got %q", got)
	}
}

func TestInterpolate_UnknownNamespaceLeftInPlace(t *testing.T) {
	comp := &ResolvedComponentConfig{Name: "App", Configuration: jsonvalue.NewObject()}
	all := ResolvedConfig{"App": comp}
	var got2 string
	got := interpolate("{params:foo}", comp, all, nil, "", func(c, p, r string) { got2 = r })
	if got != "{params:foo}" {
		t.Fatalf("unknown namespace must be left in place, got %q", got)
	}
	if got2 == "" {
		t.Fatalf("expected a logged reason for the unknown namespace")
	}
}
