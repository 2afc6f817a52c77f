// This file is part of Weirding Host Utility
// Copyright (c) 2025 Weirding Host contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"context"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/weirdinghost/weirdingctl/pkg/consts"
	"github.com/weirdinghost/weirdingctl/pkg/images"
)

var (
	useCaseFlag = ""
	aiOnlyFlag  = false
)

var imagesCmd = &cobra.Command{
	Use:           "images",
	Short:         "List base operating system images known to this tool",
	SilenceUsage:  true,
	SilenceErrors: true,
	Example: strings.ReplaceAll(
		`1. List all known images
   $ {PLUGIN_NAME} images

2. List images recommended for AI workloads
   $ {PLUGIN_NAME} images --use-case ai_workloads

3. List AI-optimized images only
   $ {PLUGIN_NAME} images --ai-only`,
		`{PLUGIN_NAME}`,
		consts.AppName,
	),
	Run: func(c *cobra.Command, args []string) {
		imagesMain(c.Context())
	},
}

func init() {
	imagesCmd.PersistentFlags().StringVarP(&useCaseFlag, "use-case", "", useCaseFlag,
		"Filter images by recommended use case, e.g. desktop, server, ai_workloads")
	imagesCmd.PersistentFlags().BoolVarP(&aiOnlyFlag, "ai-only", "", aiOnlyFlag,
		"List AI-optimized images only")
}

func imagesMain(ctx context.Context) {
	cacheDir, err := images.DefaultCacheDir()
	if err != nil {
		eprintf(true, "%v\n", err)
		os.Exit(1)
	}
	catalog := images.New(cacheDir)

	var imgs []images.Image
	switch {
	case aiOnlyFlag:
		imgs = catalog.AIOptimized()
	default:
		imgs = catalog.RecommendedFor(useCaseFlag)
	}

	if printer != nil {
		if err := printer(imgs); err != nil {
			eprintf(true, "%v\n", err)
			os.Exit(1)
		}
		return
	}

	if len(imgs) == 0 {
		eprintf(false, "No matching images found\n")
		os.Exit(1)
	}

	writer := newTableWriter(
		table.Row{"ID", "NAME", "VERSION", "ARCH", "SIZE", "AI", "CACHED"},
		[]table.SortBy{
			{Name: "ID", Mode: table.Asc},
		},
		noHeaders,
	)
	for _, img := range imgs {
		ai, cached := "no", "no"
		if img.AIOptimized {
			ai = "yes"
		}
		if catalog.IsCached(img) {
			cached = "yes"
		}
		writer.AppendRow([]interface{}{
			img.ID,
			img.Name,
			img.Version,
			img.Architecture,
			printableBytes(img.Size),
			ai,
			cached,
		})
	}
	writer.Render()

	eprintf(false, "\nImage cache: %v\n", cacheDir)
}
