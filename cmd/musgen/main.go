// Command musgen generates MUS serializers for the core record types into
// core/records_mus.gen.go. Run it through go generate in the core package.
package main

import (
	"flag"
	"os"
	"reflect"
	"strings"

	musgen "github.com/mus-format/musgen-go/mus"
	genops "github.com/mus-format/musgen-go/options/generate"
	structops "github.com/mus-format/musgen-go/options/struct"
	typeops "github.com/mus-format/musgen-go/options/type"
	"github.com/poiesic/medimatch/core"
)

const defaultOutput = "./core/records_mus.gen.go"

func main() {
	output := flag.String("o", defaultOutput, "file to write, relative to the module root")
	flag.Parse()

	cwd, err := os.Getwd()
	if err != nil {
		panic(err)
	}
	// go generate runs in the core directory
	if strings.HasSuffix(cwd, "core") {
		if err := os.Chdir(".."); err != nil {
			panic(err)
		}
	}

	bs, err := generate()
	if err != nil {
		panic(err)
	}
	if err := os.WriteFile(*output, bs, 0644); err != nil {
		panic(err)
	}
}

func generate() ([]byte, error) {
	g, err := musgen.NewCodeGenerator(
		genops.WithPkgPath("github.com/poiesic/medimatch/core"),
	)
	if err != nil {
		return nil, err
	}

	g.AddDefinedType(reflect.TypeFor[core.ID]())

	// Id, Name, Vector
	err = g.AddStruct(reflect.TypeFor[core.Medication](),
		structops.WithField(),
		structops.WithField(),
		structops.WithField())
	if err != nil {
		return nil, err
	}

	// Model, Dimension, UpdatedAt in unix micros
	err = g.AddStruct(reflect.TypeFor[core.CatalogInfo](),
		structops.WithField(),
		structops.WithField(),
		structops.WithField(typeops.WithTimeUnit(typeops.Micro)))
	if err != nil {
		return nil, err
	}

	return g.Generate()
}
