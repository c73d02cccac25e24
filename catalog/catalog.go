// Package catalog defines the static registries of benchmarked servers
// and workload scenarios. The registries are built once and read-only;
// all lookups go through accessor functions that fail closed on unknown
// names.
package catalog

// Server describes one benchmarked HTTP server implementation.
type Server struct {
	Name string
	Port int
	// SupportsH2 marks servers included in HTTP/2 benchmark runs.
	SupportsH2 bool
}

// Scenario is an HTTP/1.1 workload driven through wrk.
type Scenario struct {
	Name            string
	LuaScript       string
	Endpoint        string
	RequiresRestart bool
	RequiresStatic  bool
	RequiresTLS     bool
	UseHTTPS        bool
}

// H2Scenario is the h2load mapping of a workload.
type H2Scenario struct {
	Name            string
	Endpoint        string
	Method          string
	BodyFile        string   // POST body file under h2_data/, passed via -d
	ExtraHeaders    []string // additional -H flags
	RequiresRestart bool
	RequiresStatic  bool
	Connections     int // overrides the global -c when > 0
	Streams         int // overrides the global -m when > 0
}

var servers = map[string]Server{
	"aeronet":  {Name: "aeronet", Port: 8080, SupportsH2: true},
	"drogon":   {Name: "drogon", Port: 8081},
	"undertow": {Name: "undertow", Port: 8082, SupportsH2: true},
	"go":       {Name: "go", Port: 8083, SupportsH2: true},
	"python":   {Name: "python", Port: 8084, SupportsH2: true},
	"pistache": {Name: "pistache", Port: 8085},
	"rust":     {Name: "rust", Port: 8086, SupportsH2: true},
	"crow":     {Name: "crow", Port: 8087},
}

// serverOrder fixes the presentation and execution order.
var serverOrder = []string{
	"aeronet", "drogon", "pistache", "crow", "rust", "undertow", "go", "python",
}

var h2ServerOrder = []string{"aeronet", "rust", "undertow", "go", "python"}

var scenarios = map[string]Scenario{
	"headers":    {Name: "headers", LuaScript: "lua/headers_stress.lua", Endpoint: "/headers"},
	"body":       {Name: "body", LuaScript: "lua/large_body.lua", Endpoint: "/uppercase"},
	"body-codec": {Name: "body-codec", LuaScript: "lua/body_codec.lua", Endpoint: "/body-codec"},
	"static":     {Name: "static", LuaScript: "lua/static_routes.lua", Endpoint: "/ping"},
	"cpu":        {Name: "cpu", LuaScript: "lua/cpu_bound.lua", Endpoint: "/compute"},
	"mixed":      {Name: "mixed", LuaScript: "lua/mixed_workload.lua", Endpoint: "/"},
	"files": {
		Name: "files", LuaScript: "lua/static_files.lua", Endpoint: "/index.html",
		RequiresRestart: true, RequiresStatic: true,
	},
	"routing": {
		Name: "routing", LuaScript: "lua/routing_stress.lua", Endpoint: "/rXXX",
		RequiresRestart: true,
	},
	"tls": {
		Name: "tls", LuaScript: "lua/tls_handshake.lua", Endpoint: "/ping",
		RequiresRestart: true, RequiresTLS: true, UseHTTPS: true,
	},
}

var scenarioOrder = []string{
	"headers", "body", "body-codec", "static", "cpu", "mixed", "files", "routing",
}

var h2Scenarios = map[string]H2Scenario{
	"headers": {Name: "headers", Endpoint: "/headers?count=10&size=64", Method: "GET"},
	"body": {
		Name: "body", Endpoint: "/uppercase", Method: "POST",
		BodyFile: "h2_body_1k.bin",
	},
	"body-codec": {
		Name: "body-codec", Endpoint: "/body-codec", Method: "POST",
		BodyFile:     "h2_body_1k.gz",
		ExtraHeaders: []string{"Content-Encoding: gzip", "Accept-Encoding: gzip"},
	},
	"static": {Name: "static", Endpoint: "/ping", Method: "GET"},
	"cpu":    {Name: "cpu", Endpoint: "/compute?complexity=30&hash_iters=1000", Method: "GET"},
	"mixed":  {Name: "mixed", Endpoint: "/ping", Method: "GET"},
	"files": {
		Name: "files", Endpoint: "/large.bin", Method: "GET",
		RequiresRestart: true, RequiresStatic: true,
		// 25MB per file; cap concurrency to avoid OOM on the server side.
		Connections: 20, Streams: 1,
	},
	"routing": {
		Name: "routing", Endpoint: "/r500", Method: "GET",
		RequiresRestart: true,
	},
}

// H2MixedEndpoints are the URIs h2load cycles through round-robin for
// the mixed scenario.
var H2MixedEndpoints = []string{
	"/ping",
	"/headers?count=5&size=32",
	"/body?size=512",
	"/compute?complexity=20&hash_iters=500",
	"/json?items=5",
}

// LookupServer returns the descriptor for name.
func LookupServer(name string) (Server, bool) {
	s, ok := servers[name]
	return s, ok
}

// LookupScenario returns the HTTP/1.1 scenario for name.
func LookupScenario(name string) (Scenario, bool) {
	s, ok := scenarios[name]
	return s, ok
}

// LookupH2Scenario returns the h2load scenario mapping for name.
func LookupH2Scenario(name string) (H2Scenario, bool) {
	s, ok := h2Scenarios[name]
	return s, ok
}

// ServerOrder returns the fixed execution order for the given protocol
// family. The returned slice is a copy.
func ServerOrder(h2 bool) []string {
	src := serverOrder
	if h2 {
		src = h2ServerOrder
	}

	out := make([]string, len(src))
	copy(out, src)

	return out
}

// ScenarioOrder returns the ordered scenario names for the protocol
// family. The H2 order contains only scenarios with an h2load mapping.
func ScenarioOrder(h2 bool) []string {
	out := make([]string, 0, len(scenarioOrder))
	for _, name := range scenarioOrder {
		if h2 {
			if _, ok := h2Scenarios[name]; !ok {
				continue
			}
		}

		out = append(out, name)
	}

	return out
}
