package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cuemby/forkful/pkg/client"
	"github.com/cuemby/forkful/pkg/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Import recipes from a YAML file",
	Long: `Publish recipes described in a YAML file through the API.

A file may hold several documents separated by ---. Recipes whose title
already exists for the signed-in user are skipped.

Example file:
  kind: Recipe
  metadata:
    name: weeknight-bread
  spec:
    title: Weeknight bread
    servings: 4
    ingredients:
      - 3 cups flour
      - 1 1/2 tsp salt
    steps:
      - Mix everything
      - Bake at 220C for 35 minutes
    tags: [bread]

Examples:
  forkful apply -f recipes.yaml --token $FORKFUL_TOKEN`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML file to apply (required)")
	addClientFlags(applyCmd)
	_ = applyCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(applyCmd)
}

// Resource is one YAML document understood by apply
type Resource struct {
	APIVersion string              `yaml:"apiVersion"`
	Kind       string              `yaml:"kind"`
	Metadata   ResourceMetadata    `yaml:"metadata"`
	Spec       types.RecipeRequest `yaml:"spec"`
}

type ResourceMetadata struct {
	Name string `yaml:"name"`
}

// decodeResources reads every document in a YAML stream
func decodeResources(r io.Reader) ([]*Resource, error) {
	var resources []*Resource
	dec := yaml.NewDecoder(r)
	for {
		var res Resource
		err := dec.Decode(&res)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		if res.Kind == "" && res.Spec.Title == "" {
			continue
		}
		resources = append(resources, &res)
	}
	return resources, nil
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")

	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	defer f.Close()

	resources, err := decodeResources(f)
	if err != nil {
		return err
	}
	if len(resources) == 0 {
		return fmt.Errorf("no resources found in %s", filename)
	}

	c, err := clientFromFlags(cmd, true)
	if err != nil {
		return err
	}

	me, err := c.Me()
	if err != nil {
		return fmt.Errorf("failed to resolve signed-in user: %w", err)
	}
	existing, err := c.ListRecipes(client.ListOptions{Author: me.Username})
	if err != nil {
		return fmt.Errorf("failed to list recipes: %w", err)
	}
	titles := make(map[string]bool, len(existing))
	for _, r := range existing {
		titles[r.Title] = true
	}

	out := cmd.OutOrStdout()
	for _, res := range resources {
		switch res.Kind {
		case "Recipe", "":
			if err := applyRecipe(out, c, res, titles); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported resource kind: %s", res.Kind)
		}
	}
	return nil
}

func applyRecipe(out io.Writer, c *client.Client, res *Resource, titles map[string]bool) error {
	spec := res.Spec
	if spec.Title == "" {
		spec.Title = res.Metadata.Name
	}
	if spec.Title == "" {
		return fmt.Errorf("recipe title is required")
	}

	if titles[spec.Title] {
		fmt.Fprintf(out, "Recipe already exists: %s (skipping)\n", spec.Title)
		return nil
	}

	fmt.Fprintf(out, "Creating recipe: %s\n", spec.Title)
	recipe, err := c.CreateRecipe(&spec)
	if err != nil {
		return fmt.Errorf("failed to create recipe %q: %w", spec.Title, err)
	}
	titles[recipe.Title] = true
	fmt.Fprintf(out, "✓ Recipe created: %s (ID: %s)\n", recipe.Title, recipe.ID)
	return nil
}
