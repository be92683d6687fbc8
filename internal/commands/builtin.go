package commands

// Builtin names handled specially by the REPL.
const (
	NameInit     = "init"
	NameClear    = "clear"
	NameCompress = "compress"
)

const initPrompt = "Generate project instructions for project scope: $ARGUMENTS\n\n" +
	"Instructions should be saved to ./.berkelium/berkelium.md file in markdown format.\n\n" +
	"Instructions should be generated according to the following template:\n\n" +
	"```md\n" +
	"# [Project Name]\n" +
	"[Introduction for the project]\n\n" +
	"## CRITICAL RULES\n" +
	"- Template-specific critical patterns\n" +
	"- Essential constraints and guidelines\n\n" +
	"## PROJECT CONTEXT\n" +
	"- Project type and goals\n" +
	"- Technology stack\n" +
	"- Architecture decisions\n\n" +
	"## DEVELOPMENT PATTERNS\n" +
	"- Coding standards and practices\n" +
	"- File organization\n" +
	"- Testing strategies\n\n" +
	"## MEMORY MANAGEMENT\n" +
	"- Context storage patterns\n" +
	"- Decision tracking\n\n" +
	"## DEPLOYMENT & CI/CD (Optional)\n" +
	"- Build processes\n" +
	"- Testing pipelines\n\n" +
	"## SECURITY & COMPLIANCE\n" +
	"- Security practices\n" +
	"- Access controls\n" +
	"```"

const compressPrompt = "I need to compress the current conversation memory to save tokens while retaining important context. " +
	"Please use the compress_memory tool to:\n\n" +
	"1. Analyze the current conversation history\n" +
	"2. Create a comprehensive yet concise summary\n" +
	"3. Replace the full conversation history with the summary\n\n" +
	"The tool will automatically detect the current thread ID and handle the memory compression process.\n\n" +
	"Please use the compress_memory tool to compress this conversation."

// Builtins returns the commands that ship with the binary.
func Builtins() []Command {
	return []Command{
		{
			Name:        NameInit,
			Description: "Generate project instructions for a given project scope",
			Prompt:      initPrompt,
			Source:      "builtin",
		},
		{
			Name:        NameClear,
			Description: "Clear the terminal screen and start a fresh conversation",
			Prompt:      "Clear the terminal and reset the conversation context",
			Source:      "builtin",
		},
		{
			Name:        NameCompress,
			Description: "Compress conversation memory into a summary to save tokens while retaining context",
			Prompt:      compressPrompt,
			Source:      "builtin",
		},
	}
}
