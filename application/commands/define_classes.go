package commands

// DefineClassesCommand registers the classes declared by a schema source.
// Classes that already exist are left untouched.
type DefineClassesCommand struct {
	Source   []byte `json:"-" validate:"required"`
	Filename string `json:"filename"`
}

// Validate validates the command
func (c DefineClassesCommand) Validate() error {
	return validate(c)
}

// DefineClassesResult splits the declared classes by whether this command created them
type DefineClassesResult struct {
	Defined  []string `json:"defined"`
	Existing []string `json:"existing"`
}
