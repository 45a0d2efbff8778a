package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/msageha/deckplan/internal/catalog"
	"github.com/msageha/deckplan/internal/events"
	"github.com/msageha/deckplan/internal/infer"
	"github.com/msageha/deckplan/internal/lock"
	"github.com/msageha/deckplan/internal/logging"
	"github.com/msageha/deckplan/internal/match"
	"github.com/msageha/deckplan/internal/model"
	"github.com/msageha/deckplan/internal/setup"
	"github.com/msageha/deckplan/internal/store"
	"github.com/msageha/deckplan/internal/wizard"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit(os.Args[2:])
	case "catalog":
		runCatalog(os.Args[2:])
	case "plan":
		runPlan(os.Args[2:])
	case "wizard":
		runWizard(os.Args[2:])
	case "config":
		runConfig(os.Args[2:])
	case "version":
		fmt.Printf("deckplan %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runInit(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: deckplan init <project_dir> [--name <name>]")
		os.Exit(1)
	}
	dir := args[0]
	name := ""
	rest := args[1:]
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case "--name":
			if i+1 >= len(rest) {
				fmt.Fprintln(os.Stderr, "--name requires a value")
				os.Exit(1)
			}
			i++
			name = rest[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: deckplan init <project_dir> [--name <name>]\n", rest[i])
			os.Exit(1)
		}
	}

	if err := setup.Run(dir, name); err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		os.Exit(1)
	}
	absDir, _ := filepath.Abs(dir)
	fmt.Printf("Initialized .deckplan/ in %s\n", absDir)
}

func runCatalog(args []string) {
	jsonOutput := false
	for _, a := range args {
		switch a {
		case "--json":
			jsonOutput = true
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: deckplan catalog [--json]\n", a)
			os.Exit(1)
		}
	}

	railDeck, _ := catalog.DeckDefinition(catalog.FamilyRail)
	slotDeck, _ := catalog.DeckDefinition(catalog.FamilySlot)
	carriers := catalog.CompatibleCarriers(catalog.FamilyRail)

	if jsonOutput {
		out := struct {
			Decks    []model.DeckDefinition    `json:"decks"`
			Carriers []model.CarrierDefinition `json:"carriers"`
		}{
			Decks:    []model.DeckDefinition{railDeck, slotDeck},
			Carriers: carriers,
		}
		printJSON(out)
		return
	}

	fmt.Println("Deck families:")
	fmt.Printf("  %-20s rail-based, %d rails at %.1f mm pitch\n", railDeck.Family, railDeck.Rails, railDeck.RailPitch)
	fmt.Printf("  %-20s slot-based, %d usable slots (slot %d is trash)\n", slotDeck.Family, slotDeck.SlotCount(), slotDeck.TrashSlot)
	fmt.Println()
	fmt.Println("Carriers (rail-based decks):")
	for _, c := range carriers {
		fmt.Printf("  %-22s %-7s %d slots, spans %d rails\n", c.FQN, c.Type, c.Slots, c.RailSpan)
	}
}

func runPlan(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: deckplan plan <protocol.yaml> --deck <identifier> [--json] [--tree]")
		os.Exit(1)
	}
	protocolPath := args[0]
	var deckID string
	jsonOutput := false
	tree := false
	rest := args[1:]
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case "--deck":
			if i+1 >= len(rest) {
				fmt.Fprintln(os.Stderr, "--deck requires a value")
				os.Exit(1)
			}
			i++
			deckID = rest[i]
		case "--json":
			jsonOutput = true
		case "--tree":
			tree = true
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: deckplan plan <protocol.yaml> --deck <identifier> [--json] [--tree]\n", rest[i])
			os.Exit(1)
		}
	}
	if deckID == "" {
		fmt.Fprintln(os.Stderr, "plan: --deck is required")
		os.Exit(1)
	}

	cfg, _, logger, level := mustWorkspace()
	protocol, err := loadProtocol(protocolPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "plan: %v\n", err)
		os.Exit(1)
	}

	bus := events.NewBus(100)
	defer bus.Close()
	engine := infer.NewEngine(cfg.Inference, bus, logger, level)

	deckSetup, err := engine.CreateDeckSetup(protocol, deckID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "plan: %v\n", err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(deckSetup)
		return
	}
	printSetup(deckSetup)

	if tree {
		def, ok := catalog.DeckDefinition(deckID)
		if !ok {
			fmt.Fprintf(os.Stderr, "plan: unknown deck %q, cannot build tree\n", deckID)
			os.Exit(1)
		}
		fmt.Println()
		printTree(catalog.BuildResourceTreeFromSetup(deckSetup, def), 0)
	}
}

func runWizard(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: deckplan wizard <init|status|next|back|skip|place-carrier|place-resource|auto|map|reset> [options]")
		os.Exit(1)
	}
	switch args[0] {
	case "init":
		runWizardInit(args[1:])
	case "status":
		runWizardStatus(args[1:])
	case "next":
		runWizardNav(func(svc *wizard.Service) { fmt.Printf("step: %s\n", svc.NextStep()) })
	case "back":
		runWizardNav(func(svc *wizard.Service) { fmt.Printf("step: %s\n", svc.PreviousStep()) })
	case "skip":
		runWizardNav(func(svc *wizard.Service) {
			svc.Skip()
			fmt.Println("session skipped")
		})
	case "place-carrier":
		runWizardPlaceCarrier(args[1:])
	case "place-resource":
		runWizardPlaceResource(args[1:])
	case "auto":
		runWizardAuto(args[1:])
	case "map":
		runWizardMap(args[1:])
	case "reset":
		runWizardReset(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown wizard subcommand: %s\n", args[0])
		fmt.Fprintln(os.Stderr, "usage: deckplan wizard <init|status|next|back|skip|place-carrier|place-resource|auto|map|reset> [options]")
		os.Exit(1)
	}
}

func runWizardInit(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: deckplan wizard init <protocol.yaml> --deck <identifier>")
		os.Exit(1)
	}
	protocolPath := args[0]
	var deckID string
	rest := args[1:]
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case "--deck":
			if i+1 >= len(rest) {
				fmt.Fprintln(os.Stderr, "--deck requires a value")
				os.Exit(1)
			}
			i++
			deckID = rest[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: deckplan wizard init <protocol.yaml> --deck <identifier>\n", rest[i])
			os.Exit(1)
		}
	}
	if deckID == "" {
		fmt.Fprintln(os.Stderr, "wizard init: --deck is required")
		os.Exit(1)
	}

	protocol, err := loadProtocol(protocolPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wizard init: %v\n", err)
		os.Exit(1)
	}

	withSession(func(svc *wizard.Service) error {
		if svc.Load(protocol.ID) {
			state := svc.State()
			fmt.Printf("resumed session %s at step %s (%.0f%% placed)\n", state.SessionID, state.Step, svc.Progress())
			return nil
		}
		if err := svc.Initialize(protocol, deckID); err != nil {
			return err
		}
		if err := svc.Save(); err != nil {
			return err
		}
		state := svc.State()
		fmt.Printf("started session %s: %d carrier requirements, %d assignments\n",
			state.SessionID, len(state.Requirements), len(state.Assignments))
		return nil
	}, false)
}

func runWizardStatus(args []string) {
	jsonOutput := false
	for _, a := range args {
		switch a {
		case "--json":
			jsonOutput = true
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: deckplan wizard status [--json]\n", a)
			os.Exit(1)
		}
	}

	withSession(func(svc *wizard.Service) error {
		state := svc.State()
		if jsonOutput {
			printJSON(state)
			return nil
		}
		fmt.Printf("session:  %s\n", state.SessionID)
		fmt.Printf("protocol: %s\n", state.ProtocolID)
		fmt.Printf("deck:     %s\n", state.DeckType)
		fmt.Printf("step:     %s\n", state.Step)
		fmt.Printf("progress: %.0f%%\n", svc.Progress())
		if state.Complete {
			fmt.Println("complete: yes")
		}
		if state.Skipped {
			fmt.Println("skipped:  yes")
		}
		if next, ok := svc.CurrentAssignment(); ok {
			fmt.Printf("next up:  %s → %s\n", next.ResourceName, next.SlotID)
		}
		return nil
	}, true)
}

func runWizardNav(apply func(*wizard.Service)) {
	withSession(func(svc *wizard.Service) error {
		apply(svc)
		return svc.Save()
	}, true)
}

func runWizardPlaceCarrier(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: deckplan wizard place-carrier <requirement_id> [--unplace]")
		os.Exit(1)
	}
	id := args[0]
	placed := true
	if len(args) > 1 && args[1] == "--unplace" {
		placed = false
	}

	withSession(func(svc *wizard.Service) error {
		if err := svc.MarkCarrierPlaced(id, placed); err != nil {
			return err
		}
		fmt.Printf("progress: %.0f%%\n", svc.Progress())
		return svc.Save()
	}, true)
}

func runWizardPlaceResource(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: deckplan wizard place-resource <resource_name> [--unplace]")
		os.Exit(1)
	}
	name := args[0]
	placed := true
	if len(args) > 1 && args[1] == "--unplace" {
		placed = false
	}

	withSession(func(svc *wizard.Service) error {
		if err := svc.MarkResourcePlaced(name, placed); err != nil {
			return err
		}
		fmt.Printf("progress: %.0f%%\n", svc.Progress())
		return svc.Save()
	}, true)
}

func runWizardAuto(args []string) {
	inventoryPath := ""
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--inventory":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--inventory requires a value")
				os.Exit(1)
			}
			i++
			inventoryPath = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: deckplan wizard auto [--inventory <file.yaml>]\n", args[i])
			os.Exit(1)
		}
	}

	withSessionInventory(inventoryPath, func(svc *wizard.Service) error {
		assigned := svc.AutoAssignConsumables(context.Background())
		fmt.Printf("assigned %d consumable(s)\n", assigned)
		return svc.Save()
	})
}

func runWizardMap(args []string) {
	jsonOutput := false
	for _, a := range args {
		switch a {
		case "--json":
			jsonOutput = true
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: deckplan wizard map [--json]\n", a)
			os.Exit(1)
		}
	}

	withSession(func(svc *wizard.Service) error {
		assetMap := svc.AssetMap()
		if jsonOutput {
			printJSON(assetMap)
			return nil
		}
		if len(assetMap) == 0 {
			fmt.Println("no placed assignments")
			return nil
		}
		for id, binding := range assetMap {
			fmt.Printf("%-12s %-30s %s\n", id, binding.Name, binding.InventoryID)
		}
		return nil
	}, true)
}

// reset must work even when the persisted snapshot is unreadable, so
// it does not load the session first.
func runWizardReset(_ []string) {
	withSession(func(svc *wizard.Service) error {
		svc.Reset()
		if err := svc.Clear(); err != nil {
			return err
		}
		fmt.Println("session reset")
		return nil
	}, false)
}

func runConfig(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: deckplan config <save|list|delete> [options]")
		os.Exit(1)
	}
	switch args[0] {
	case "save":
		runConfigSave(args[1:])
	case "list":
		runConfigList(args[1:])
	case "delete":
		runConfigDelete(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown config subcommand: %s\n", args[0])
		fmt.Fprintln(os.Stderr, "usage: deckplan config <save|list|delete> [options]")
		os.Exit(1)
	}
}

func runConfigSave(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: deckplan config save <configuration.yaml>")
		os.Exit(1)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config save: %v\n", err)
		os.Exit(1)
	}
	var deckCfg model.DeckConfiguration
	if err := yaml.Unmarshal(data, &deckCfg); err != nil {
		fmt.Fprintf(os.Stderr, "config save: parse configuration: %v\n", err)
		os.Exit(1)
	}

	cs := mustConfigStore()
	if err := cs.Save(&deckCfg); err != nil {
		fmt.Fprintf(os.Stderr, "config save: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("saved configuration %s (%s)\n", deckCfg.ID, deckCfg.Name)
}

func runConfigList(args []string) {
	machineID := ""
	jsonOutput := false
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--machine":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--machine requires a value")
				os.Exit(1)
			}
			i++
			machineID = args[i]
		case "--json":
			jsonOutput = true
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: deckplan config list [--machine <id>] [--json]\n", args[i])
			os.Exit(1)
		}
	}

	cs := mustConfigStore()
	var configs []model.DeckConfiguration
	var err error
	if machineID != "" {
		configs, err = cs.ForMachine(machineID)
	} else {
		configs, err = cs.List()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config list: %v\n", err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(configs)
		return
	}
	if len(configs) == 0 {
		fmt.Println("no saved configurations")
		return
	}
	for _, c := range configs {
		fmt.Printf("%-38s %-20s %-18s %d carrier(s)\n", c.ID, c.Name, c.DeckFamily, len(c.Carriers))
	}
}

func runConfigDelete(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: deckplan config delete <id>")
		os.Exit(1)
	}
	cs := mustConfigStore()
	if err := cs.Delete(args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "config delete: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("deleted configuration %s\n", args[0])
}

// withSession builds the wizard service over the workspace stores,
// holding the session file lock for the duration. When resume is true
// the persisted session is loaded first; a missing session is fatal.
func withSession(fn func(*wizard.Service) error, resume bool) {
	withSessionInventory("", func(svc *wizard.Service) error {
		if resume && !svc.LoadCurrent() {
			return fmt.Errorf("no active session; run 'deckplan wizard init' first")
		}
		return fn(svc)
	})
}

func withSessionInventory(inventoryPath string, fn func(*wizard.Service) error) {
	cfg, deckplanDir, logger, level := mustWorkspace()

	fl := lock.NewFileLock(filepath.Join(deckplanDir, "locks", "session.lock"))
	if err := fl.TryLock(); err != nil {
		fmt.Fprintf(os.Stderr, "wizard: %v\n", err)
		os.Exit(1)
	}
	defer fl.Unlock()

	kv, err := store.NewFileKV(filepath.Join(deckplanDir, cfg.Storage.Dir), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wizard: %v\n", err)
		os.Exit(1)
	}

	if inventoryPath == "" {
		inventoryPath = filepath.Join(deckplanDir, "inventory.yaml")
	}

	bus := events.NewBus(100)
	defer bus.Close()
	engine := infer.NewEngine(cfg.Inference, bus, logger, level)
	matcher := match.NewMatcher(&fileInventory{path: inventoryPath}, cfg.Matcher, logger, level)
	svc := wizard.NewService(engine, matcher, kv, bus, logger, level)

	if err := fn(svc); err != nil {
		fmt.Fprintf(os.Stderr, "wizard: %v\n", err)
		os.Exit(1)
	}
}

// fileInventory reads the inventory snapshot from a YAML file. Stands
// in for the live asset service in CLI runs.
type fileInventory struct {
	path string
}

func (f *fileInventory) Fetch(_ context.Context) ([]model.InventoryItem, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read inventory %s: %w", f.path, err)
	}
	var snapshot struct {
		Items []model.InventoryItem `yaml:"items"`
	}
	if err := yaml.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("parse inventory %s: %w", f.path, err)
	}
	return snapshot.Items, nil
}

func mustConfigStore() *catalog.ConfigStore {
	cfg, deckplanDir, logger, level := mustWorkspace()
	cs, err := catalog.NewConfigStore(filepath.Join(deckplanDir, cfg.Storage.ConfigsDir), logger, level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config store: %v\n", err)
		os.Exit(1)
	}
	return cs
}

func mustWorkspace() (model.Config, string, *log.Logger, logging.Level) {
	deckplanDir := findDeckplanDir()
	if deckplanDir == "" {
		fmt.Fprintln(os.Stderr, "error: .deckplan/ directory not found. Run 'deckplan init <dir>' first.")
		os.Exit(1)
	}

	cfg, err := loadConfig(deckplanDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	level := logging.ParseLevel(cfg.Logging.Level)
	logger := log.New(os.Stderr, "", log.LstdFlags)
	return cfg, deckplanDir, logger, level
}

// findDeckplanDir searches for .deckplan/ in the current directory and
// ancestors.
func findDeckplanDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ".deckplan")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func loadConfig(deckplanDir string) (model.Config, error) {
	data, err := os.ReadFile(filepath.Join(deckplanDir, "config.yaml"))
	if err != nil {
		return model.Config{}, fmt.Errorf("read config.yaml: %w", err)
	}
	var cfg model.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return model.Config{}, fmt.Errorf("parse config.yaml: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

func loadProtocol(path string) (*model.Protocol, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read protocol %s: %w", path, err)
	}
	var p model.Protocol
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse protocol %s: %w", path, err)
	}
	if p.ID == "" {
		return nil, fmt.Errorf("protocol %s has no id", path)
	}
	return &p, nil
}

func printSetup(s *model.DeckSetup) {
	fmt.Printf("protocol: %s, deck: %s\n\n", s.ProtocolID, s.DeckType)

	fmt.Println("Carrier requirements:")
	if len(s.Requirements) == 0 {
		fmt.Println("  (none)")
	}
	for _, r := range s.Requirements {
		fmt.Printf("  %-24s %-8s ×%d  %d/%d slots, rails %v\n",
			r.Carrier.FQN, r.ResourceType, r.Count, r.SlotsNeeded, r.SlotsAvailable, r.SuggestedRails)
	}

	fmt.Println()
	fmt.Println("Slot assignments (placement order):")
	if len(s.Assignments) == 0 {
		fmt.Println("  (none)")
	}
	for _, a := range s.Assignments {
		fmt.Printf("  %2d. %-30s → %s\n", a.Order, a.ResourceName, a.SlotID)
	}

	if len(s.Stacking) > 0 {
		fmt.Println()
		fmt.Println("Stacking:")
		for _, h := range s.Stacking {
			fmt.Printf("  %s: %v (%s)\n", h.SlotID, h.Order, h.Reason)
		}
	}
}

func printTree(node catalog.ResourceNode, depth int) {
	for i := 0; i < depth; i++ {
		fmt.Print("  ")
	}
	fmt.Printf("%s [%s] (%.1f, %.1f, %.1f)\n", node.Name, node.Category,
		node.Position.X, node.Position.Y, node.Position.Z)
	for _, child := range node.Children {
		printTree(child, depth+1)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "encode json: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `deckplan %s — Deck layout planning for laboratory automation

Usage: deckplan <command> [options]

Workspace:
  init <dir> [--name <name>]   Initialize .deckplan/ workspace
  catalog [--json]             List deck families and carriers

Planning:
  plan <protocol.yaml> --deck <id> [--json] [--tree]
                               Infer carriers and slot assignments

Guided setup:
  wizard init <protocol.yaml> --deck <id>   Start or resume a session
  wizard status [--json]                    Show session state
  wizard next | back | skip                 Navigate steps
  wizard place-carrier <req_id> [--unplace]
  wizard place-resource <name> [--unplace]
  wizard auto [--inventory <file.yaml>]     Auto-assign consumables
  wizard map [--json]                       Final asset map
  wizard reset                              Discard the session

Deck configurations:
  config save <configuration.yaml>
  config list [--machine <id>] [--json]
  config delete <id>

Utilities:
  version           Show version
  help              Show this help

`, version)
}
