package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/buzzbuster/antispam/internal/admin"
	"github.com/buzzbuster/antispam/internal/core"
	"github.com/buzzbuster/antispam/internal/di"
)

const usage = `Usage: antispam-inspect [flags] <command>

Commands:
  inspect     Show a user's classification state (-user required)
  force-ban   Flag a user as spammer in one group (-user and -group required)
  unban       Clear a user's spammer flag everywhere (-user required)
  diag        Check store connectivity and cache occupancy
`

func main() {
	flags := di.ParseFlags()

	if flag.NArg() != 1 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := flag.Arg(0)

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(func(logger *zap.Logger, svc *admin.Service, groups *core.GroupRegistry) error {
		defer logger.Sync()
		ctx := context.Background()

		if err := groups.Load(ctx); err != nil {
			return fmt.Errorf("load group registry: %w", err)
		}

		switch command {
		case "inspect":
			if flags.UserID == 0 {
				return fmt.Errorf("inspect requires -user")
			}
			report := svc.InspectUser(ctx, flags.UserID)
			fmt.Printf("user %d\n", report.UserID)
			fmt.Printf("  spammer:    %v\n", report.Spammer)
			fmt.Printf("  seen:       %v\n", report.Seen)
			fmt.Printf("  suspicious: %v\n", report.Suspicious)
			fmt.Printf("  flagged in: %v\n", report.FlaggedGroups)
			return nil
		case "force-ban":
			if flags.UserID == 0 || flags.GroupID == 0 {
				return fmt.Errorf("force-ban requires -user and -group")
			}
			return svc.ForceBan(ctx, flags.UserID, flags.GroupID)
		case "unban":
			if flags.UserID == 0 {
				return fmt.Errorf("unban requires -user")
			}
			cleared := svc.GlobalUnban(ctx, flags.UserID)
			fmt.Printf("cleared spammer flag in %d group(s): %v\n", len(cleared), cleared)
			return nil
		case "diag":
			d := svc.Diagnose(ctx)
			if d.StoreOK {
				fmt.Println("store: ok")
			} else {
				fmt.Printf("store: unreachable (%s)\n", d.StoreError)
			}
			fmt.Printf("groups: %d\n", d.Groups)
			fmt.Printf("cache: spammers=%d seen=%d suspicious=%d not_spammer=%d not_seen=%d\n",
				d.Cache.Spammers, d.Cache.Seen, d.Cache.Suspicious, d.Cache.NotSpammer, d.Cache.NotSeen)
			return nil
		default:
			fmt.Fprint(os.Stderr, usage)
			return fmt.Errorf("unknown command: %s", command)
		}
	}); err != nil {
		fmt.Printf("Command failed: %v\n", err)
		os.Exit(1)
	}
}
