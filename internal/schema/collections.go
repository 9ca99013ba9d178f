package schema

import "github.com/arthurcm/sitegen/internal/domain"

// Blog is the schema of the blog collection
var Blog = Schema{
	Collection: domain.CollectionBlog,
	Fields: []Field{
		{Name: "title", Kind: KindString, Required: true},
		{Name: "description", Kind: KindString},
		{Name: "pubDate", Kind: KindDate, Required: true},
		{Name: "updatedDate", Kind: KindDate},
		{Name: "slug", Kind: KindString},
		{Name: "author", Kind: KindReference, Required: true, Target: domain.CollectionAuthors},
		{Name: "relatedPosts", Kind: KindReferenceList, Target: domain.CollectionBlog},
	},
}

// Authors is the schema of the authors collection
var Authors = Schema{
	Collection: domain.CollectionAuthors,
	Fields: []Field{
		{Name: "name", Kind: KindString, Required: true},
		{Name: "portfolio", Kind: KindURL, Required: true},
	},
}

// Default returns a validator for the site's collections
func Default() *Validator {
	return NewValidator(Blog, Authors)
}
