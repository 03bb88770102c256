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
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/dgcache/assembly"
	"github.com/notargets/dgcache/config"
	"github.com/notargets/dgcache/dh"
	"github.com/notargets/dgcache/mesh"
)

// AssembleCmd represents the assemble command
var AssembleCmd = &cobra.Command{
	Use:   "assemble",
	Short: "Assemble the mass and stiffness systems of every substance",
	Long: `
Generates the mesh described by the input parameters, distributes its cells
over partitions and assembles each partition in cache cycles of at most
CacheCapacity elements.

dgcache assemble -I input.yaml --partitions 4`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bindFlags(cmd, "inputConditionsFile", "partitions", "capacity"); err != nil {
			return err
		}
		ip, err := loadParameters(viper.GetString("inputConditionsFile"))
		if err != nil {
			return err
		}
		if n := viper.GetInt("partitions"); n > 0 {
			ip.Partitions = n
		}
		if n := viper.GetInt("capacity"); n > 0 {
			ip.CacheCapacity = n
		}
		if err = ip.Validate(); err != nil {
			return err
		}
		kernels, _ := cmd.Flags().GetStringSlice("kernels")
		usePerf, _ := cmd.Flags().GetBool("perf")
		return RunAssemble(cmd.Context(), cmd.OutOrStdout(), ip, kernels, usePerf)
	},
}

func init() {
	rootCmd.AddCommand(AssembleCmd)
	AssembleCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML input parameters, built in defaults if empty")
	AssembleCmd.Flags().IntP("partitions", "p", 0, "number of concurrently assembled partitions, overrides the input")
	AssembleCmd.Flags().IntP("capacity", "c", 0, "elements per cache cycle, overrides the input")
	AssembleCmd.Flags().StringSliceP("kernels", "k", nil, "kernels to run: mass, stiffness, edge, boundary, coupling")
	AssembleCmd.Flags().Bool("perf", false, "count cpu instructions of the assembly (linux)")
}

// bindFlags binds the flags of the running command, the same key may be a
// flag of several commands.
func bindFlags(cmd *cobra.Command, names ...string) error {
	for _, name := range names {
		if err := viper.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
			return err
		}
	}
	return nil
}

func loadParameters(path string) (ip *config.Parameters, err error) {
	if len(path) == 0 {
		ip = config.Default()
		return
	}
	return config.ReadFile(path)
}

// setupProblem builds the mesh, dofs, integrals and model of ip.
func setupProblem(ip *config.Parameters) (dofs *dh.DOFHandler, in *assembly.Integrals, md *assembly.Model, err error) {
	var m *mesh.Mesh
	if m, err = ip.BuildMesh(); err != nil {
		return
	}
	if dofs, err = dh.NewDOFHandler(m, ip.PolynomialOrder); err != nil {
		return
	}
	if in, err = assembly.NewIntegrals(m, ip.BulkQuadratureOrder, ip.SideQuadratureOrder); err != nil {
		return
	}
	md, err = ip.BuildModel(m)
	return
}

func RunAssemble(ctx context.Context, w io.Writer, ip *config.Parameters, kernelNames []string, usePerf bool) (err error) {
	var (
		dofs *dh.DOFHandler
		in   *assembly.Integrals
		md   *assembly.Model
		a    *assembly.Assembler
		out  []assembly.Systems
	)
	if ctx == nil {
		ctx = context.Background()
	}
	if dofs, in, md, err = setupProblem(ip); err != nil {
		return
	}
	opts := []assembly.Option{
		assembly.WithPartitions(ip.Partitions),
		assembly.WithLogger(slog.Default()),
	}
	if ip.CacheCapacity > 0 {
		opts = append(opts, assembly.WithCapacity(ip.CacheCapacity))
	}
	if len(kernelNames) != 0 {
		kernels := make([]assembly.Kernel, len(kernelNames))
		for i, name := range kernelNames {
			if kernels[i], err = assembly.KernelByName(name); err != nil {
				return
			}
		}
		opts = append(opts, assembly.WithKernels(kernels...))
	}
	if a, err = assembly.NewAssembler(dofs, md, in, opts...); err != nil {
		return
	}
	ip.Fprint(w)
	dofs.Mesh.PrintStatistics()
	var (
		start        = time.Now()
		instructions uint64
		counted      bool
	)
	run := func() (err error) {
		out, err = a.Assemble(ctx)
		return
	}
	if usePerf {
		instructions, counted, err = countInstructions(run)
	} else {
		err = run()
	}
	if err != nil {
		return
	}
	fmt.Fprintf(w, "Assembled %d dofs in %v\n", dofs.NDofs(), time.Since(start))
	if counted {
		fmt.Fprintf(w, "%d cpu instructions\n", instructions)
	}
	for _, sys := range out {
		fmt.Fprintf(w, "%v\n%v\n", sys.Mass, sys.Stiffness)
	}
	return
}
