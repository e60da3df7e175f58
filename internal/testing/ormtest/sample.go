package ormtest

// LibraryModels is a small app used by the command and server tests
const LibraryModels = `
models:
  - name: Publisher
    fields:
      - name: name
        class: CharField

  - name: Book
    fields:
      - name: title
        class: CharField
      - name: pages
        class: IntegerField
        null: true
      - name: publisher
        class: ForeignKey
        to: Publisher
`

// Library returns a case installing the "library" app
func Library() Case {
	return Case{
		InstalledApps: []string{"library"},
		Apps:          map[string]string{"library": LibraryModels},
	}
}
