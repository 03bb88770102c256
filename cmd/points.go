/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/dgcache/config"
	"github.com/notargets/dgcache/fields"
)

// PointsCmd represents the points command
var PointsCmd = &cobra.Command{
	Use:   "points",
	Short: "Print the registered evaluation points and one cache cycle",
	Long: `
Registers the integrals of the input parameters and prints the eval point
subsets per dimension, then runs one cache cycle over the first cells and
prints the region chunks and cache rows of the cycle.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bindFlags(cmd, "inputConditionsFile"); err != nil {
			return err
		}
		ip, err := loadParameters(viper.GetString("inputConditionsFile"))
		if err != nil {
			return err
		}
		if err = ip.Validate(); err != nil {
			return err
		}
		return RunPoints(cmd.OutOrStdout(), ip)
	},
}

func init() {
	rootCmd.AddCommand(PointsCmd)
	PointsCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML input parameters, built in defaults if empty")
}

func RunPoints(w io.Writer, ip *config.Parameters) (err error) {
	dofs, in, _, err := setupProblem(ip)
	if err != nil {
		return
	}
	ep := in.EvalPoints
	for d := 0; d <= fields.MaxDim; d++ {
		if ep.NSubsets(d) == 0 {
			continue
		}
		fmt.Fprintf(w, "dim %d: %d points\n", d, ep.Size(d))
		for s := 0; s < ep.NSubsets(d); s++ {
			fmt.Fprintf(w, "  subset %d: [%d, %d)\n", s, ep.SubsetBegin(d, s), ep.SubsetEnd(d, s))
		}
	}
	cm := fields.NewElementCacheMap(ip.CacheCapacity)
	if err = cm.Init(ep); err != nil {
		return
	}
	fmt.Fprintf(w, "max points per element %d, capacity %d elements\n", cm.MaxSize(), cm.Capacity())
	n := min(cm.Capacity(), dofs.NCells())
	for elm := 0; elm < n; elm++ {
		if err = cm.Add(dofs.Cell(elm)); err != nil {
			return
		}
	}
	if err = cm.PrepareElementsToUpdate(); err != nil {
		return
	}
	for elm := 0; elm < n; elm++ {
		cell := dofs.Cell(elm)
		if err = in.Bulk[cell.Dim()].MarkUsed(cm, cell); err != nil {
			return
		}
	}
	if err = cm.CreateElementsPointsMap(); err != nil {
		return
	}
	if err = cm.FinishElementsUpdate(); err != nil {
		return
	}
	fmt.Fprintf(w, "cycle: %d elements, %d cached points\n", cm.NElements(), cm.PointsInCache())
	for _, rc := range cm.RegionChunks() {
		fmt.Fprintf(w, "  region %d: slots [%d, %d) rows [%d, %d)\n",
			rc.Region, rc.SlotBegin, rc.SlotEnd, rc.RowBegin, rc.RowEnd)
	}
	cm.ClearElementsToUpdate()
	return
}
