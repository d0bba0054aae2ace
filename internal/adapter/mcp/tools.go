package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/taskgrid/taskgrid/internal/domain/task"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.planTaskTool(),
		s.listTasksTool(),
		s.getTaskTool(),
		s.updateTaskStatusTool(),
	)
}

func (s *Server) planTaskTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("plan_task",
		mcplib.WithDescription("Decompose a natural-language description into a parent task with subtasks"),
		mcplib.WithString("description",
			mcplib.Required(),
			mcplib.Description("What needs to be done, in plain language"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handlePlanTask,
	}
}

func (s *Server) listTasksTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_tasks",
		mcplib.WithDescription("List tasks, optionally filtered by parent task or status"),
		mcplib.WithString("parent_id",
			mcplib.Description("Only return subtasks of this task"),
		),
		mcplib.WithString("status",
			mcplib.Description("Only return tasks with this status"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleListTasks,
	}
}

func (s *Server) getTaskTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_task",
		mcplib.WithDescription("Get the full details of a task by ID"),
		mcplib.WithString("task_id",
			mcplib.Required(),
			mcplib.Description("The task ID to look up"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetTask,
	}
}

func (s *Server) updateTaskStatusTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("update_task_status",
		mcplib.WithDescription("Update the status and progress of a task"),
		mcplib.WithString("task_id",
			mcplib.Required(),
			mcplib.Description("The task ID to update"),
		),
		mcplib.WithString("status",
			mcplib.Required(),
			mcplib.Description("New status (pending, running, paused, completed, failed)"),
		),
		mcplib.WithNumber("progress",
			mcplib.Description("Completion fraction between 0.0 and 1.0"),
			mcplib.Min(0),
			mcplib.Max(1),
		),
		mcplib.WithString("error",
			mcplib.Description("Failure reason, only valid with status failed"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleUpdateTaskStatus,
	}
}

func (s *Server) handlePlanTask(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	args := req.GetArguments()
	description, ok := args["description"].(string)
	if !ok || description == "" {
		return mcplib.NewToolResultError("description is required"), nil
	}
	parent, err := s.planner.Plan(ctx, task.PlanRequest{Description: description})
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to plan task", err), nil
	}
	data, err := json.Marshal(parent)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal task", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleListTasks(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	args := req.GetArguments()
	var f task.Filter
	if parentID, ok := args["parent_id"].(string); ok && parentID != "" {
		f.ParentID = &parentID
	}
	if status, ok := args["status"].(string); ok && status != "" {
		st := task.Status(status)
		f.Status = &st
	}
	tasks, err := s.tasks.List(ctx, f)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to list tasks", err), nil
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal tasks", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleGetTask(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	args := req.GetArguments()
	taskID, ok := args["task_id"].(string)
	if !ok || taskID == "" {
		return mcplib.NewToolResultError("task_id is required"), nil
	}
	t, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to get task %s", taskID), err,
		), nil
	}
	data, err := json.Marshal(t)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal task", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleUpdateTaskStatus(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	args := req.GetArguments()
	taskID, ok := args["task_id"].(string)
	if !ok || taskID == "" {
		return mcplib.NewToolResultError("task_id is required"), nil
	}
	status, ok := args["status"].(string)
	if !ok || status == "" {
		return mcplib.NewToolResultError("status is required"), nil
	}

	st := task.Status(status)
	update := task.UpdateRequest{Status: &st}
	if progress, ok := args["progress"].(float64); ok {
		update.Progress = &progress
	}
	if errMsg, ok := args["error"].(string); ok && errMsg != "" {
		update.Error = &errMsg
	}

	t, err := s.tasks.Update(ctx, taskID, update)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to update task %s", taskID), err,
		), nil
	}
	data, err := json.Marshal(t)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal task", err), nil
	}
	return toolResultJSON(string(data)), nil
}
