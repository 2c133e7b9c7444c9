package grpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified name of the document service.
const ServiceName = "estatekeeper.v1.DocumentService"

// DocumentServiceServer is the server API of DocumentService.
type DocumentServiceServer interface {
	CreateDocument(context.Context, *CreateDocumentRequest) (*Document, error)
	GetDocument(context.Context, *DocumentRequest) (*Document, error)
	UpdateDocument(context.Context, *UpdateDocumentRequest) (*Document, error)
	DeleteDocument(context.Context, *DocumentRequest) (*Empty, error)
	ListDocuments(context.Context, *ListDocumentsRequest) (*ListDocumentsResponse, error)
	QueryAuditLog(context.Context, *QueryAuditLogRequest) (*QueryAuditLogResponse, error)
	GrantDelegate(context.Context, *DelegateRequest) (*Delegate, error)
	RevokeDelegate(context.Context, *DelegateRequest) (*Empty, error)
	GrantAccess(context.Context, *AccessRequest) (*AccessEntry, error)
	RevokeAccess(context.Context, *AccessRequest) (*Empty, error)
	UploadProgress(context.Context, *UploadProgressRequest) (*UploadProgress, error)
}

// unaryHandler adapts a typed method to grpc.MethodDesc.Handler.
func unaryHandler[Req, Resp any](method string, call func(DocumentServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(DocumentServiceServer)
		if interceptor == nil {
			return call(s, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(s, ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func method[Req, Resp any](name string, call func(DocumentServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{MethodName: name, Handler: unaryHandler(name, call)}
}

// DocumentServiceDesc describes DocumentService for grpc.Server.RegisterService.
var DocumentServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DocumentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		method("CreateDocument", DocumentServiceServer.CreateDocument),
		method("GetDocument", DocumentServiceServer.GetDocument),
		method("UpdateDocument", DocumentServiceServer.UpdateDocument),
		method("DeleteDocument", DocumentServiceServer.DeleteDocument),
		method("ListDocuments", DocumentServiceServer.ListDocuments),
		method("QueryAuditLog", DocumentServiceServer.QueryAuditLog),
		method("GrantDelegate", DocumentServiceServer.GrantDelegate),
		method("RevokeDelegate", DocumentServiceServer.RevokeDelegate),
		method("GrantAccess", DocumentServiceServer.GrantAccess),
		method("RevokeAccess", DocumentServiceServer.RevokeAccess),
		method("UploadProgress", DocumentServiceServer.UploadProgress),
	},
	Metadata: "estatekeeper/v1/document_service",
}
