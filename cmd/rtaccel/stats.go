package main

import (
	"bytes"
	"fmt"

	"github.com/gekko3d/rtaccel"
	"github.com/gekko3d/rtaccel/rt/bvh"
	"github.com/gekko3d/rtaccel/rt/pool"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Build a scene and display its hierarchy statistics.
func ShowStats(ctx *cli.Context) error {
	logger := setupLogging(ctx)

	_, scene, err := loadScene(ctx, logger)
	if err != nil {
		return err
	}
	defer scene.Close()

	st, err := scene.Stats()
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	logger.Infof("hierarchy statistics\n%s", hierarchyTable(st))
	logger.Infof("pool usage\n%s", poolTable(st.Pools))
	logger.Debugf("build profile\n%s", scene.Profiler())
	return nil
}

func hierarchyTable(st rtaccel.SceneStats) string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetHeader([]string{"Structure", "Items", "Nodes", "Leaves", "Depth", "Avg leaf", "SAH cost"})
	for _, m := range st.Meshes {
		table.Append(statsRow("BLAS "+m.Name, m.Stats))
	}
	table.Append(statsRow("TLAS", st.TLAS))
	table.SetFooter([]string{"", fmt.Sprintf("%d meshes", len(st.Meshes)), fmt.Sprintf("%d instances", st.Instances), "", "", "", ""})

	table.Render()
	return buf.String()
}

func statsRow(name string, s bvh.Stats) []string {
	return []string{
		name,
		fmt.Sprintf("%d", s.Items),
		fmt.Sprintf("%d", s.Nodes),
		fmt.Sprintf("%d", s.Leaves),
		fmt.Sprintf("%d", s.MaxDepth),
		fmt.Sprintf("%.2f", s.AvgLeafSize),
		fmt.Sprintf("%.2f", s.SAHCost),
	}
}

func poolTable(ps bvh.PoolStats) string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Pool", "Used", "Free", "Capacity", "Limit"})
	for _, a := range []pool.ArenaStats{ps.Nodes, ps.Indices, ps.Primitives} {
		limit := "none"
		if a.Limit > 0 {
			limit = fmt.Sprintf("%d", a.Limit)
		}
		table.Append([]string{
			a.Name,
			fmt.Sprintf("%d", a.Reserved),
			fmt.Sprintf("%d", a.Free),
			fmt.Sprintf("%d", a.Cap),
			limit,
		})
	}

	table.Render()
	return buf.String()
}
