package dispatcher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func marshalCompact(v any) ([]byte, error) { return json.Marshal(v) }

// Serve registers §4.6's tool surface on an MCP server and blocks on
// the line-delimited JSON-RPC stdio transport of §6 until stdin closes.
func Serve(state *ServerState) error {
	d := New(state)
	s := server.NewMCPServer("voicesmith-mcp", "1.0.0")

	s.AddTool(mcp.NewTool("speak",
		mcp.WithDescription("Speak text in this session's assigned voice."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Agent name this session speaks as.")),
		mcp.WithString("text", mcp.Required()),
		mcp.WithNumber("speed", mcp.Description("Multiplicative rate, default 1.0.")),
		mcp.WithBoolean("block", mcp.Description("Wait for playback to finish, default true.")),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		name, _ := args["name"].(string)
		text, _ := args["text"].(string)
		speed := floatArg(args, "speed", 1.0)
		block := boolArg(args, "block", true)
		return toolResult(d.Speak(name, text, speed, block))
	})

	s.AddTool(mcp.NewTool("listen",
		mcp.WithDescription("Record and transcribe speech from the microphone."),
		mcp.WithNumber("timeout", mcp.Description("Seconds, default 15.")),
		mcp.WithNumber("silence_threshold", mcp.Description("Seconds of trailing silence, default 1.5.")),
		mcp.WithString("prompt"),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		timeout := time.Duration(floatArg(args, "timeout", 15)) * time.Second
		silence := time.Duration(floatArg(args, "silence_threshold", 1.5) * float64(time.Second))
		return toolResult(d.Listen(ctx, timeout, silence))
	})

	s.AddTool(mcp.NewTool("speak_then_listen",
		mcp.WithDescription("Speak, then listen for a spoken reply."),
		mcp.WithString("name", mcp.Required()),
		mcp.WithString("text", mcp.Required()),
		mcp.WithNumber("speed"),
		mcp.WithNumber("timeout"),
		mcp.WithNumber("silence_threshold"),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		name, _ := args["name"].(string)
		text, _ := args["text"].(string)
		speed := floatArg(args, "speed", 1.0)
		timeout := time.Duration(floatArg(args, "timeout", 15)) * time.Second
		silence := time.Duration(floatArg(args, "silence_threshold", 1.5) * float64(time.Second))
		return toolResult(d.SpeakThenListen(ctx, name, text, speed, timeout, silence))
	})

	s.AddTool(mcp.NewTool("set_voice",
		mcp.WithDescription("Assign a specific catalogue voice to an agent name."),
		mcp.WithString("name", mcp.Required()),
		mcp.WithString("voice", mcp.Required()),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		name, _ := args["name"].(string)
		voiceID, _ := args["voice"].(string)
		return toolResult(d.SetVoice(name, voiceID))
	})

	s.AddTool(mcp.NewTool("get_voice_registry",
		mcp.WithDescription("Snapshot the agent-name to voice-id registry."),
	), func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return toolResult(d.GetVoiceRegistry())
	})

	s.AddTool(mcp.NewTool("list_voices",
		mcp.WithDescription("List the static voice catalogue."),
	), func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return toolResult(d.ListVoices())
	})

	s.AddTool(mcp.NewTool("mute", mcp.WithDescription("Mute speech output.")),
		func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return toolResult(d.Mute())
		})

	s.AddTool(mcp.NewTool("unmute", mcp.WithDescription("Unmute speech output.")),
		func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return toolResult(d.Unmute())
		})

	s.AddTool(mcp.NewTool("stop", mcp.WithDescription("Cancel any listen, kill playback, drain the speech queue.")),
		func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return toolResult(d.Stop())
		})

	s.AddTool(mcp.NewTool("status", mcp.WithDescription("Aggregate server status.")),
		func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return toolResult(d.Status())
		})

	s.AddTool(mcp.NewTool("wake_enable", mcp.WithDescription("Start the wake-word listener.")),
		func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return toolResult(d.WakeEnable())
		})

	s.AddTool(mcp.NewTool("wake_disable", mcp.WithDescription("Stop the wake-word listener.")),
		func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return toolResult(d.WakeDisable())
		})

	return server.ServeStdio(s)
}

func floatArg(args map[string]any, key string, def float64) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return def
	}
}

func boolArg(args map[string]any, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

func toolResult(payload map[string]any) (*mcp.CallToolResult, error) {
	data, err := marshalCompact(payload)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if success, ok := payload["success"].(bool); ok && !success {
		return mcp.NewToolResultError(string(data)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
