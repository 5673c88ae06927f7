package main

// shellCompletions holds a minimal static completion script per shell,
// covering piri's fixed subcommand set (spec §6). Subcommand arguments
// (scratchpad/singleton names) are configuration-dependent and are left to
// the shell's default filename completion.
var shellCompletions = map[string]string{
	"bash": `_piri_completions() {
    local cur=${COMP_WORDS[COMP_CWORD]}
    COMPREPLY=($(compgen -W "daemon scratchpads singleton window-order stop completion" -- "$cur"))
}
complete -F _piri_completions piri`,
	"zsh": `#compdef piri
_arguments '1: :(daemon scratchpads singleton window-order stop completion)'`,
	"fish": `complete -c piri -n "__fish_use_subcommand" -a "daemon scratchpads singleton window-order stop completion"`,
}
