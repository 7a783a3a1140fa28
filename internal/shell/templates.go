package shell

// Hook templates. {{self}} is the binary name and {{time}} a command that
// prints the current time in nanoseconds. The preexec function asks
// '{{self}} gate' whether the command should be logged; its stdout stays on
// the terminal so the gate can check it. The exit status is read before
// anything else runs in the prompt hook.
var templates = map[Shell]string{
	Bash: `[[ -f ~/.bash-preexec.sh ]] && source ~/.bash-preexec.sh

function ctx_preexec() {
    unset CTX_CMD_START_TIME CTX_CMD_TO_LOG
    [[ "$1" =~ ^{{self}}($|[[:space:]]) ]] && return
    if {{self}} gate "$1" 2>/dev/null; then
        export CTX_CMD_TO_LOG="$1"
        export CTX_CMD_START_TIME=$({{time}})
    fi
}
function ctx_precmd() {
    local exit_code=$?
    if [ -n "$CTX_CMD_START_TIME" ] && [ -n "$CTX_CMD_TO_LOG" ]; then
        local end_time=$({{time}})
        local duration_ns=$((end_time - CTX_CMD_START_TIME))
        local duration_s=$(awk "BEGIN {print $duration_ns/1000000000}")
        {{self}} log-cmd "$CTX_CMD_TO_LOG" "$PWD" "$exit_code" "$duration_s"
        unset CTX_CMD_START_TIME
        unset CTX_CMD_TO_LOG
    fi
}
preexec_functions+=(ctx_preexec)
precmd_functions+=(ctx_precmd)
`,
	Zsh: `function ctx_preexec() {
    unset CTX_CMD_START_TIME CTX_CMD_TO_LOG
    [[ "$1" =~ ^{{self}}($|[[:space:]]) ]] && return
    if {{self}} gate "$1" 2>/dev/null; then
        export CTX_CMD_TO_LOG="$1"
        export CTX_CMD_START_TIME=$({{time}})
    fi
}
function ctx_precmd() {
    local exit_code=$?
    if [[ -n "$CTX_CMD_START_TIME" && -n "$CTX_CMD_TO_LOG" ]]; then
        local end_time=$({{time}})
        local duration_ns=$((end_time - CTX_CMD_START_TIME))
        local duration_s=$(awk "BEGIN {print $duration_ns/1000000000}")
        {{self}} log-cmd "$CTX_CMD_TO_LOG" "$PWD" "$exit_code" "$duration_s"
        unset CTX_CMD_START_TIME
        unset CTX_CMD_TO_LOG
    fi
}
autoload -Uz add-zsh-hook
add-zsh-hook preexec ctx_preexec
add-zsh-hook precmd ctx_precmd
`,
	Fish: `function ctx_preexec --on-event fish_preexec
    set -e CTX_CMD_START_TIME
    set -e CTX_CMD_TO_LOG
    if string match -qr '^{{self}}($|\s)' -- $argv[1]
        return
    end
    if {{self}} gate $argv[1] 2>/dev/null
        set -g CTX_CMD_TO_LOG $argv[1]
        set -g CTX_CMD_START_TIME ({{time}})
    end
end

function ctx_precmd --on-event fish_prompt
    set exit_code $status
    if test -n "$CTX_CMD_START_TIME" -a -n "$CTX_CMD_TO_LOG"
        set end_time ({{time}})
        set duration_ns (math $end_time - $CTX_CMD_START_TIME)
        set duration_s (math --scale 2 $duration_ns / 1000000000)
        {{self}} log-cmd "$CTX_CMD_TO_LOG" "$PWD" "$exit_code" "$duration_s"
        set -e CTX_CMD_START_TIME
        set -e CTX_CMD_TO_LOG
    end
end
`,
}
