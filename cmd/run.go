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
	"path/filepath"
	"time"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/gocrust/InputParameters"
	"github.com/notargets/gocrust/model_problems/Deformation"
	"github.com/notargets/gocrust/utils"
)

type RunOptions struct {
	InputFile  string
	MeshFile   string
	Partitions int
	Profile    string // cpu, mem or empty
	Verbose    bool
}

// RunCmd represents the run command
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Apply boundary conditions over time and write the selected output",
	Long: `
Reads an input deck describing the databases, boundary conditions and outputs of
a run, steps from StartTime to FinalTime and writes one VTK file per output and
step.

gocrust run -I input.yaml [-F mesh.su2] [--partitions 4] [--profile cpu]`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ro := &RunOptions{
			InputFile:  viper.GetString("inputConditionsFile"),
			MeshFile:   viper.GetString("gridFile"),
			Partitions: viper.GetInt("partitions"),
			Profile:    viper.GetString("profile"),
			Verbose:    viper.GetBool("verbose"),
		}
		_, err = RunPipeline(context.Background(), ro)
		return
	},
}

func init() {
	rootCmd.AddCommand(RunCmd)
	RunCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML input deck with databases, BCs and outputs")
	RunCmd.Flags().StringP("gridFile", "F", "", "Mesh file (.yaml or .su2), overrides MeshFile of the input deck")
	RunCmd.Flags().IntP("partitions", "n", 1, "number of mesh partitions, each run by its own go routine")
	RunCmd.Flags().String("profile", "", "write a cpu or mem profile of the run")
	RunCmd.Flags().BoolP("verbose", "v", false, "print progress")
	for _, name := range []string{"inputConditionsFile", "gridFile", "partitions", "profile", "verbose"} {
		if err := viper.BindPFlag(name, RunCmd.Flags().Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func RunPipeline(ctx context.Context, ro *RunOptions) (c *Deformation.Deformation, err error) {
	if len(ro.InputFile) == 0 {
		exampleFile := `
########################################
Title: "Test Case"
MeshFile: mesh.yaml
TimeStep: 0.5
FinalTime: 2
Databases:
  zero:
    Values: {displacement-x: 0, displacement-y: 0}
BCs:
  - {Label: fixed, Kind: Dirichlet, Group: x_neg, Initial: zero}
Output:
  - {Path: output/mesh, VertexFields: [displacement]}
########################################
`
		return nil, fmt.Errorf("must supply an input deck (-I, --inputConditionsFile), example:%s", exampleFile)
	}
	switch ro.Profile {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.Quiet).Stop()
	default:
		return nil, fmt.Errorf("unknown profile %s, use cpu or mem", ro.Profile)
	}
	var ip *InputParameters.Pipeline
	if ip, err = InputParameters.ReadPipeline(ro.InputFile); err != nil {
		return
	}
	if ro.Verbose {
		ip.Print()
	}
	if c, err = Deformation.NewDeformation(ctx, ip, filepath.Dir(ro.InputFile), ro.MeshFile,
		ro.Partitions, ro.Verbose); err != nil {
		return
	}
	start := time.Now()
	if err = c.Run(); err != nil {
		return
	}
	if ro.Verbose {
		fmt.Printf("Completed %d steps in %s, %s\n", ip.NumSteps(), time.Since(start), utils.GetMemUsage())
	}
	return
}
