package domain

// Recipe types understood by the machine service.
const (
	RecipeTypeDocker     = "docker"
	RecipeFileDockerfile = "Dockerfile"
)

// Recipe is a declarative description used to create a machine.
type Recipe struct {
	Type     string `json:"type" yaml:"type"`
	Filename string `json:"filename" yaml:"filename"`
	Script   string `json:"script" yaml:"script"`
}

// DockerRecipe returns a docker recipe carrying the given Dockerfile script.
func DockerRecipe(script string) Recipe {
	return Recipe{
		Type:     RecipeTypeDocker,
		Filename: RecipeFileDockerfile,
		Script:   script,
	}
}
