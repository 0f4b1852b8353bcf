package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/GoPolymarket/parlay-builder/internal/app"
	"github.com/GoPolymarket/parlay-builder/internal/availability"
	"github.com/GoPolymarket/parlay-builder/internal/config"
	xlog "github.com/GoPolymarket/parlay-builder/internal/log"
	"github.com/GoPolymarket/parlay-builder/internal/parlay"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to config file")
	sports := flag.String("sports", "", "comma separated sports to probe (default: configured selection)")
	week := flag.Int("week", 0, "NFL week filter")
	props := flag.Bool("props", false, "count player props")
	timeout := flag.Duration("timeout", 15*time.Second, "overall probe timeout")
	flag.Parse()

	cfg, err := config.LoadFile(*cfgPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "config file: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnv()
	// The probe never serves and never reports attempts.
	cfg.API.Enabled = false
	cfg.Telemetry.Enabled = false
	cfg.Weeks.Enabled = true
	cfg.Probe.Enabled = true
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(2)
	}

	xlog.Configure(xlog.Config{Level: "warn", Service: "parlay-probe", Pretty: true})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	a, err := app.New(ctx, cfg, app.Options{Logger: xlog.Base()})
	if err != nil {
		fmt.Fprintf(os.Stderr, "build app: %v\n", err)
		os.Exit(1)
	}
	defer a.Shutdown(context.Background())

	ent := a.Resolver.Current()
	fmt.Println("=== Entitlements ===")
	fmt.Printf("user:          %s\n", orGuest(a.Resolver.UserID()))
	fmt.Printf("authenticated: %t\n", ent.IsAuthenticated)
	fmt.Printf("max legs:      %d\n", ent.MaxLegs)
	fmt.Printf("mix sports:    %t\n", ent.MixSportsAllowed)
	fmt.Printf("player props:  %t\n", ent.PlayerPropsAllowed)
	if err := a.Resolver.LastError(); err != nil {
		fmt.Printf("last error:    %v\n", err)
	}

	fmt.Println()
	fmt.Println("=== NFL weeks ===")
	list := a.Weeks.Weeks()
	if len(list.Weeks) == 0 {
		fmt.Println("(none)")
	}
	for _, w := range list.Weeks {
		marker := " "
		if w.IsCurrent {
			marker = "*"
		}
		state := "available"
		if !w.IsAvailable {
			state = "unavailable"
		}
		fmt.Printf("%s %-10s %s\n", marker, w.Label, state)
	}

	sel := availability.SelectionFor(a.Controller.Config())
	if *sports != "" {
		sel.Sports = nil
		for _, raw := range strings.Split(*sports, ",") {
			if strings.TrimSpace(raw) == "" {
				continue
			}
			s, err := parlay.ParseSport(raw)
			if err != nil {
				fmt.Fprintf(os.Stderr, "invalid -sports: %v\n", err)
				os.Exit(2)
			}
			sel.Sports = append(sel.Sports, s)
		}
	}
	if *week > 0 {
		w := *week
		sel.Week = &w
	}
	if *props {
		sel.IncludePlayerProps = true
	}
	if len(sel.Sports) == 0 {
		fmt.Println("\nno sports selected; pass -sports to probe candidate counts")
		return
	}

	res := a.Probe.Fetch(ctx, sel)
	fmt.Println()
	fmt.Println("=== Candidate legs ===")
	for _, av := range res.PerSport {
		fmt.Printf("%-6s count=%s strong=%s games=%s", av.Sport, intOrUnknown(av.Count), intOrUnknown(av.StrongEdgeCount), intOrUnknown(av.UniqueGames))
		if len(av.TopExclusionReasons) > 0 {
			reasons := make([]string, 0, len(av.TopExclusionReasons))
			for _, r := range av.TopExclusionReasons {
				reasons = append(reasons, string(r.Reason))
			}
			fmt.Printf(" excluded=%s", strings.Join(reasons, ","))
		}
		fmt.Println()
	}
	g := res.Gate()
	fmt.Println()
	switch {
	case !g.Known:
		fmt.Println("triple: selectable (strong-edge count unknown)")
	case g.Selectable:
		fmt.Printf("triple: selectable (%d strong edges)\n", g.StrongEdges)
	default:
		fmt.Printf("triple: unavailable. %s\n", g.Reason)
	}
}

func orGuest(id string) string {
	if id == "" {
		return "(guest)"
	}
	return id
}

func intOrUnknown(v *int) string {
	if v == nil {
		return "?"
	}
	return fmt.Sprintf("%d", *v)
}
