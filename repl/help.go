package repl

// Intro is shown once when the shell starts.
const Intro = "//// druid. q to quit. h for help\n\n"

// HelpText lists the shell commands.
const HelpText = `
 h            this menu
 r <filename> run <filename>
 u <filename> upload <filename>
 p            print current userscript
 q            quit

 anything else is sent to crow as-is
`
