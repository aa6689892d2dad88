package generators

import (
	"math/rand"

	"github.com/go-faker/faker/v4"
	"github.com/mmrzaf/tablefill/internal/domain"
)

// Faker-backed generators draw from faker's own source, so a run seed does not
// make them repeat.

type FakerNameGenerator struct{}

func (g *FakerNameGenerator) Generate(rng *rand.Rand, ctx GeneratorContext) (interface{}, error) {
	switch ctx.Params["part"] {
	case "first":
		return faker.FirstName(), nil
	case "last":
		return faker.LastName(), nil
	default:
		return faker.FirstName() + " " + faker.LastName(), nil
	}
}

func (g *FakerNameGenerator) Validate(spec domain.GeneratorSpec, columnType domain.SQLType) error {
	if part, ok := spec.Params["part"]; ok && part != "first" && part != "last" && part != "full" {
		return errInvalidParam("part", part, "first, last or full")
	}
	return textColumn("faker_name", columnType)
}

type FakerWordGenerator struct{}

func (g *FakerWordGenerator) Generate(rng *rand.Rand, ctx GeneratorContext) (interface{}, error) {
	return faker.Word(), nil
}

func (g *FakerWordGenerator) Validate(spec domain.GeneratorSpec, columnType domain.SQLType) error {
	return textColumn("faker_word", columnType)
}

type FakerSentenceGenerator struct{}

func (g *FakerSentenceGenerator) Generate(rng *rand.Rand, ctx GeneratorContext) (interface{}, error) {
	return faker.Sentence(), nil
}

func (g *FakerSentenceGenerator) Validate(spec domain.GeneratorSpec, columnType domain.SQLType) error {
	return textColumn("faker_sentence", columnType)
}

type FakerEmailGenerator struct{}

func (g *FakerEmailGenerator) Generate(rng *rand.Rand, ctx GeneratorContext) (interface{}, error) {
	return faker.Email(), nil
}

func (g *FakerEmailGenerator) Validate(spec domain.GeneratorSpec, columnType domain.SQLType) error {
	return textColumn("faker_email", columnType)
}
